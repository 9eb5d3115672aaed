package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/logging"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func memFile(name string, data []byte) File {
	return File{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func newLocalService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Upload: config.UploadConfig{
		MaxFileSize:  64 * 1024,
		MaxFiles:     2,
		AllowedTypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif", "image/avif"},
	}}
	db := testdb.Open(t, &Upload{})
	storage := NewLocalStorage(dir, "http://localhost:8080/uploads/")
	return NewService(db, cfg, storage, logging.Component(logging.Discard(), "upload")), dir
}

func TestUploadImageStoresLocally(t *testing.T) {
	svc, dir := newLocalService(t)
	ctx := context.Background()

	up, err := svc.UploadImage(ctx, &ImageUploadRequest{File: memFile("bottle.PNG", pngBytes(t, 4, 3)), Folder: "Products", UploadedBy: 1})
	require.NoError(t, err)

	assert.Equal(t, "local", up.Provider)
	assert.Equal(t, "products", up.Folder)
	assert.Equal(t, "image/png", up.MimeType)
	assert.Equal(t, "4x3", up.GetDimensions())
	assert.Regexp(t, `^http://localhost:8080/uploads/products/[0-9a-f-]{36}\.png$`, up.URL)

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(up.PublicID)+".png"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteImage(ctx, EncodePublicID(up.PublicID)))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(up.PublicID)+".png"))
	assert.True(t, os.IsNotExist(err))

	err = svc.DeleteImage(ctx, EncodePublicID(up.PublicID))
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestUploadImageValidation(t *testing.T) {
	svc, _ := newLocalService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		file   File
		folder string
	}{
		{"not an image", memFile("notes.png", []byte("just some text, not a picture")), ""},
		{"extension mismatch", memFile("bottle.jpg", pngBytes(t, 2, 2)), ""},
		{"too large", memFile("big.png", make([]byte, 65*1024)), ""},
		{"empty", memFile("empty.png", nil), ""},
		{"bad folder", memFile("bottle.png", pngBytes(t, 2, 2)), "../etc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadImage(ctx, &ImageUploadRequest{File: tt.file, Folder: tt.folder, UploadedBy: 1})
			assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}

func TestBulkUploadReportsPartialFailures(t *testing.T) {
	svc, _ := newLocalService(t)
	ctx := context.Background()

	res, err := svc.BulkUploadImages(ctx, &BulkUploadRequest{
		Files:      []File{memFile("a.png", pngBytes(t, 1, 1)), memFile("b.gif", pngBytes(t, 1, 1))},
		UploadedBy: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.SuccessCount)
	assert.Equal(t, 1, res.Summary.FailureCount)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "b.gif", res.Failed[0].Filename)

	_, err = svc.BulkUploadImages(ctx, &BulkUploadRequest{Files: make([]File, 3)})
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

type fakeCDN struct {
	fail      error
	destroyed []string
}

func (f *fakeCDN) Upload(_ context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	data, _ := io.ReadAll(file.(io.Reader))
	id := params.Folder + "/" + params.PublicID
	return &uploader.UploadResult{PublicID: id, SecureURL: "https://res.cloudinary.com/demo/" + id, Width: 4, Height: 3, Bytes: len(data)}, nil
}

func (f *fakeCDN) Destroy(_ context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyed = append(f.destroyed, params.PublicID)
	return &uploader.DestroyResult{Result: "ok"}, nil
}

func TestCloudinaryStorage(t *testing.T) {
	cdn := &fakeCDN{}
	storage := newCloudinaryStorage(cdn, "drinksharbour", nil, logging.Component(logging.Discard(), "upload"))
	ctx := context.Background()

	obj, err := storage.Upload(ctx, bytes.NewReader([]byte("img")), UploadOptions{PublicID: "abc", Folder: "products"})
	require.NoError(t, err)
	assert.Equal(t, "drinksharbour/products/abc", obj.PublicID)
	assert.Equal(t, int64(3), obj.Bytes)

	require.NoError(t, storage.Delete(ctx, obj.PublicID))
	assert.Equal(t, []string{"drinksharbour/products/abc"}, cdn.destroyed)

	cdn.fail = errors.New("connection reset")
	for i := 0; i < 3; i++ {
		_, err = storage.Upload(ctx, bytes.NewReader(nil), UploadOptions{PublicID: "x"})
		assert.True(t, apperrors.Is(err, apperrors.CodeDependency))
	}
	_, err = storage.Upload(ctx, bytes.NewReader(nil), UploadOptions{PublicID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporarily unavailable")
}
