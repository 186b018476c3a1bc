package Blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore keeps objects under a local directory and serves them from
// baseURL, for the local backend.
type DiskStore struct {
	root    string
	baseURL string
}

func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *DiskStore) Root() string {
	return d.root
}

func (d *DiskStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// progressReader reports bytes read and stops once ctx is done.
type progressReader struct {
	ctx      context.Context
	r        io.Reader
	written  int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.progress != nil {
			p.progress(p.written)
		}
	}
	return n, err
}

func (d *DiskStore) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string, progress ProgressFunc) (Object, error) {
	target, err := d.resolve(objectPath)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}
	defer os.Remove(tmp.Name())

	pr := &progressReader{ctx: ctx, r: r, progress: progress}
	if _, err := io.Copy(tmp, pr); err != nil {
		tmp.Close()
		return Object{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(objectPath))
	}
	return Object{Path: objectPath, ContentType: contentType, Size: info.Size(), Updated: info.ModTime()}, nil
}

func (d *DiskStore) URL(_ context.Context, objectPath string) (string, error) {
	target, err := d.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	return d.baseURL + "/" + strings.TrimLeft(path.Clean("/"+objectPath), "/"), nil
}

func (d *DiskStore) Delete(_ context.Context, objectPath string) error {
	target, err := d.resolve(objectPath)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	return err
}

func (d *DiskStore) List(_ context.Context, prefix string) ([]Object, error) {
	var out []Object
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{
			Path:        rel,
			ContentType: mime.TypeByExtension(path.Ext(rel)),
			Size:        info.Size(),
			Updated:     info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
