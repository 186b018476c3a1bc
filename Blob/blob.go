// Package Blob stores uploaded files by path.
package Blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrUploadTimeout = errors.New("upload timed out")
)

// DefaultUploadTimeout is the wall-clock cap on a single upload.
const DefaultUploadTimeout = 90 * time.Second

// ProgressFunc receives the number of bytes written so far.
type ProgressFunc func(written int64)

type Object struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Updated     time.Time `json:"updated"`
}

type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string, progress ProgressFunc) (Object, error)
	URL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// UploadWithTimeout cancels the transfer once timeout elapses and reports
// ErrUploadTimeout instead of the transport's cancellation error. Both stores
// abort promptly on cancellation, so the call returns close to the deadline.
func UploadWithTimeout(ctx context.Context, store BlobStore, timeout time.Duration, path string, r io.Reader, contentType string, progress ProgressFunc) (Object, error) {
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	obj, err := store.Upload(ctx, path, r, contentType, progress)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Object{}, fmt.Errorf("%w after %s: %s", ErrUploadTimeout, timeout, path)
	}
	return obj, err
}

// SafeName reduces an uploaded file name to a single path segment.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// ChatFilePath is chat-files/{projectId}/{subMenuId}/{timestamp}_{name}.
func ChatFilePath(projectID, subMenuID, name string, at time.Time) string {
	return fmt.Sprintf("chat-files/%s/%s/%d_%s", projectID, subMenuID, at.UnixMilli(), SafeName(name))
}

// TaskFilePath is task-files/{taskId}/{timestamp}_{name}.
func TaskFilePath(taskID, name string, at time.Time) string {
	return fmt.Sprintf("task-files/%s/%d_%s", taskID, at.UnixMilli(), SafeName(name))
}

// ThumbnailPath is where the preview of an image upload is kept.
func ThumbnailPath(objectPath string) string {
	return "thumbnails/" + strings.TrimSuffix(objectPath, path.Ext(objectPath)) + ".jpg"
}
