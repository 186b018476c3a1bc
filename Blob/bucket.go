package Blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// BucketStore keeps objects in a Cloud Storage bucket, normally the Firebase
// project's default bucket.
type BucketStore struct {
	bucket  *storage.BucketHandle
	urlTTL  time.Duration
	timeNow func() time.Time
}

func NewBucketStore(bucket *storage.BucketHandle) *BucketStore {
	return &BucketStore{bucket: bucket, urlTTL: 7 * 24 * time.Hour, timeNow: time.Now}
}

// Upload streams r through a resumable writer. Cancelling ctx aborts the
// transfer and discards the partial object.
func (b *BucketStore) Upload(ctx context.Context, path string, r io.Reader, contentType string, progress ProgressFunc) (Object, error) {
	w := b.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if progress != nil {
		w.ProgressFunc = func(n int64) { progress(n) }
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("finalize %s: %w", path, err)
	}

	attrs := w.Attrs()
	return Object{Path: path, ContentType: attrs.ContentType, Size: attrs.Size, Updated: attrs.Updated}, nil
}

func (b *BucketStore) URL(_ context.Context, path string) (string, error) {
	url, err := b.bucket.SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: b.timeNow().Add(b.urlTTL),
	})
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", path, err)
	}
	return url, nil
}

func (b *BucketStore) Delete(ctx context.Context, path string) error {
	err := b.bucket.Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (b *BucketStore) List(ctx context.Context, prefix string) ([]Object, error) {
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		out = append(out, Object{
			Path:        attrs.Name,
			ContentType: attrs.ContentType,
			Size:        attrs.Size,
			Updated:     attrs.Updated,
		})
	}
	return out, nil
}
