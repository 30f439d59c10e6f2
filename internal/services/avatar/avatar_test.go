package avatar

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/metrics"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	host      string
	publicURL string
	err       error

	calls       int
	key         string
	contentType string
	body        []byte
	removed     []string
}

func (f *fakeBucket) Upload(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key, f.contentType, f.body = key, contentType, raw
	return key, nil
}

func (f *fakeBucket) PublicURL(path string) string {
	if f.publicURL != "" {
		return f.publicURL
	}
	return "https://" + f.host + "/storage/v1/object/public/profile-images/" + path
}

func (f *fakeBucket) Remove(_ context.Context, path string) error {
	f.removed = append(f.removed, path)
	return f.err
}

func (f *fakeBucket) BucketExists(context.Context) (bool, error) { return true, nil }

func (f *fakeBucket) Host() string { return f.host }

func newUploader(opts Options) (*Uploader, *fakeBucket) {
	bucket := &fakeBucket{host: "abc.supabase.co"}
	return New(sl.Discard(), bucket, metrics.New(), opts), bucket
}

func imageFile(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Body:        bytes.NewReader(data),
	}
}

func TestUpload_TooLargeIsRejectedLocally(t *testing.T) {
	u, bucket := newUploader(Options{})

	data := make([]byte, 6<<20)
	res, err := u.Upload(context.Background(), imageFile("big.png", "image/png", data))
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Nil(t, res)
	assert.Zero(t, bucket.calls)
	assert.Equal(t, "file size is limited to 5MB", UserMessage(err))
}

func TestUpload_UnderstatedSizeIsRejected(t *testing.T) {
	u, bucket := newUploader(Options{})

	f := imageFile("big.png", "image/png", make([]byte, MaxFileSize+10))
	f.Size = 100

	_, err := u.Upload(context.Background(), f)
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Zero(t, bucket.calls)
}

func TestUpload_NotImageIsRejectedLocally(t *testing.T) {
	u, bucket := newUploader(Options{})

	_, err := u.Upload(context.Background(), imageFile("notes.pdf", "application/pdf", []byte("%PDF")))
	require.ErrorIs(t, err, ErrNotImage)
	assert.Zero(t, bucket.calls)
	assert.Equal(t, "only image files can be uploaded", UserMessage(err))
}

func TestCheck_ExactLimitAccepted(t *testing.T) {
	u, _ := newUploader(Options{})
	require.NoError(t, u.Check(File{Size: MaxFileSize, ContentType: "image/jpeg"}))
}

func TestUpload_Success(t *testing.T) {
	u, bucket := newUploader(Options{})
	u.now = func() time.Time { return time.UnixMilli(1700000000123) }

	data := []byte(gofakeit.LoremIpsumSentence(10))
	res, err := u.Upload(context.Background(), imageFile("Photo.PNG", "image/png", data))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^1700000000123-[0-9a-f]{13}\.png$`), res.Path)
	assert.Equal(t, res.Path, bucket.key)
	assert.Equal(t, "image/png", bucket.contentType)
	assert.Equal(t, data, bucket.body)
	assert.True(t, strings.HasPrefix(res.URL, "https://abc.supabase.co/"))
	assert.True(t, strings.HasSuffix(res.URL, res.Path))
}

func TestUpload_DefaultExtension(t *testing.T) {
	u, bucket := newUploader(Options{})

	_, err := u.Upload(context.Background(), imageFile("camera", "image/jpeg", []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(bucket.key, ".jpg"))
}

func TestUpload_RemoteFailure(t *testing.T) {
	u, bucket := newUploader(Options{})
	bucket.err = errors.New("status 409: duplicate")

	res, err := u.Upload(context.Background(), imageFile("a.png", "image/png", []byte{1}))
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.Nil(t, res)
	assert.Equal(t, "file upload failed", UserMessage(err))
}

func TestUpload_ForeignPublicURL(t *testing.T) {
	u, bucket := newUploader(Options{})
	bucket.publicURL = "https://evil.example.com/a.png"

	_, err := u.Upload(context.Background(), imageFile("a.png", "image/png", []byte{1}))
	require.ErrorIs(t, err, ErrUploadFailed)
}

func TestUpload_InsecurePublicURL(t *testing.T) {
	u, bucket := newUploader(Options{})
	bucket.publicURL = "http://abc.supabase.co/storage/v1/object/public/profile-images/a.png"

	res, err := u.Upload(context.Background(), imageFile("a.png", "image/png", []byte{1}))
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.Nil(t, res)
}

func TestUpload_NormalizeScalesDown(t *testing.T) {
	u, bucket := newUploader(Options{Normalize: true, MaxDimension: 64})

	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		for y := 0; y < 100; y++ {
			src.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	res, err := u.Upload(context.Background(), imageFile("wide.png", "image/png", buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Path, ".jpg"))
	assert.Equal(t, "image/jpeg", bucket.contentType)

	scaled, format, err := image.Decode(bytes.NewReader(bucket.body))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, scaled.Bounds().Dx())
	assert.Equal(t, 32, scaled.Bounds().Dy())
}

func TestUpload_NormalizeKeepsSmallAndUnknown(t *testing.T) {
	u, bucket := newUploader(Options{Normalize: true, MaxDimension: 64})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))

	_, err := u.Upload(context.Background(), imageFile("small.png", "image/png", buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "image/png", bucket.contentType)
	assert.Equal(t, buf.Bytes(), bucket.body)

	_, err = u.Upload(context.Background(), imageFile("pic.webp", "image/webp", []byte("RIFF....WEBP")))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", bucket.contentType)
	assert.True(t, strings.HasSuffix(bucket.key, ".webp"))
}

func TestSafeURL(t *testing.T) {
	u, _ := newUploader(Options{})

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: ""},
		{raw: "https://abc.supabase.co/storage/v1/object/public/profile-images/a.png", want: "https://abc.supabase.co/storage/v1/object/public/profile-images/a.png"},
		{raw: "https://example.com/a.png", want: ""},
		{raw: "http://abc.supabase.co/storage/v1/object/public/profile-images/a.png", want: ""},
		{raw: "javascript:alert(1)", want: ""},
		{raw: "ftp://abc.supabase.co/a.png", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, u.SafeURL(tt.raw), tt.raw)
	}
}

func TestDelete(t *testing.T) {
	u, bucket := newUploader(Options{})

	require.NoError(t, u.Delete(context.Background(), "a.png"))
	assert.Equal(t, []string{"a.png"}, bucket.removed)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", extension("a.PNG"))
	assert.Equal(t, "jpg", extension("noext"))
	assert.Equal(t, "jpg", extension("weird.p?g"))
	assert.Equal(t, "gif", extension("x.y.gif"))
}
