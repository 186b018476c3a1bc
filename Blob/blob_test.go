package Blob

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadPaths(t *testing.T) {
	at := time.UnixMilli(1715558400123)
	assert.Equal(t, "chat-files/p1/s1/1715558400123_report.pdf", ChatFilePath("p1", "s1", "report.pdf", at))
	assert.Equal(t, "task-files/t1/1715558400123_photo.jpg", TaskFilePath("t1", `C:\Users\kim\photo.jpg`, at))
	assert.Equal(t, "task-files/t1/1715558400123_passwd", TaskFilePath("t1", "../../etc/passwd", at))
	assert.Equal(t, "file", SafeName("  "))
	assert.Equal(t, "thumbnails/task-files/t1/1_a.jpg", ThumbnailPath("task-files/t1/1_a.png"))
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)

	var last int64
	obj, err := store.Upload(ctx, "task-files/t1/1_a.txt", strings.NewReader("hello world"), "text/plain", func(n int64) { last = n })
	require.NoError(t, err)
	assert.Equal(t, int64(11), obj.Size)
	assert.Equal(t, int64(11), last)
	assert.Equal(t, "text/plain", obj.ContentType)

	url, err := store.URL(ctx, "task-files/t1/1_a.txt")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/task-files/t1/1_a.txt", url)

	_, err = store.Upload(ctx, "chat-files/p1/s1/2_b.txt", strings.NewReader("b"), "", nil)
	require.NoError(t, err)

	objs, err := store.List(ctx, "task-files/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "task-files/t1/1_a.txt", objs[0].Path)

	require.NoError(t, store.Delete(ctx, "task-files/t1/1_a.txt"))
	assert.ErrorIs(t, store.Delete(ctx, "task-files/t1/1_a.txt"), ErrNotFound)
	_, err = store.URL(ctx, "task-files/t1/1_a.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStoreStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root, "/files")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "../escape.txt", strings.NewReader("x"), "text/plain", nil)
	require.NoError(t, err)
	objs, err := store.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "escape.txt", objs[0].Path)
}

// stalledReader never produces data until its context is cancelled.
type stalledReader struct{ ctx context.Context }

func (s stalledReader) Read([]byte) (int, error) {
	<-s.ctx.Done()
	return 0, s.ctx.Err()
}

type slowStore struct{ DiskStore }

func (s *slowStore) Upload(ctx context.Context, path string, _ io.Reader, contentType string, progress ProgressFunc) (Object, error) {
	return s.DiskStore.Upload(ctx, path, stalledReader{ctx}, contentType, progress)
}

func TestUploadWithTimeout(t *testing.T) {
	disk, err := NewDiskStore(t.TempDir(), "/files")
	require.NoError(t, err)

	_, err = UploadWithTimeout(context.Background(), &slowStore{*disk}, 30*time.Millisecond, "a/b.bin", strings.NewReader("x"), "application/octet-stream", nil)
	assert.ErrorIs(t, err, ErrUploadTimeout)

	objs, err := disk.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objs, "cancelled upload leaves nothing behind")

	obj, err := UploadWithTimeout(context.Background(), disk, time.Second, "a/c.bin", strings.NewReader("xyz"), "application/octet-stream", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), obj.Size)
}

func TestThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 640))
	for x := 0; x < 1280; x++ {
		img.Set(x, 10, color.RGBA{R: 255, A: 255})
	}
	var src bytes.Buffer
	require.NoError(t, png.Encode(&src, img))

	out, err := Thumbnail(&src)
	require.NoError(t, err)

	thumb, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, ThumbnailSide, thumb.Bounds().Dx())
	assert.Equal(t, ThumbnailSide/2, thumb.Bounds().Dy())

	_, err = Thumbnail(strings.NewReader("not an image"))
	assert.Error(t, err)

	assert.True(t, IsImage("image/PNG"))
	assert.False(t, IsImage("application/pdf"))
}
