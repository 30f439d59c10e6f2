package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/metrics"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
)

// MaxFileSize is the largest accepted upload, 5 MiB.
const MaxFileSize int64 = 5 << 20

var (
	ErrFileTooLarge = errors.New("file is larger than 5MB")
	ErrNotImage     = errors.New("file is not an image")
	ErrUploadFailed = errors.New("upload failed")
)

type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type Result struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

type Options struct {
	// Normalize scales images larger than MaxDimension down and re-encodes them as JPEG.
	Normalize    bool
	MaxDimension int
	Quality      int
}

type Uploader struct {
	log     *slog.Logger
	store   storage.ObjectStorage
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
}

func New(log *slog.Logger, store storage.ObjectStorage, m *metrics.Metrics, opts Options) *Uploader {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 512
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 85
	}

	return &Uploader{
		log:     log,
		store:   store,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// Check rejects a file before anything is sent over the network.
func (u *Uploader) Check(f File) error {
	if f.Size > MaxFileSize {
		return ErrFileTooLarge
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(f.ContentType)), "image/") {
		return ErrNotImage
	}
	return nil
}

func (u *Uploader) Upload(ctx context.Context, f File) (*Result, error) {
	const op = "services.avatar.Upload"

	log := u.log.With(
		slog.String("op", op),
		slog.String("file_name", f.Name),
		slog.Int64("file_size", f.Size),
		slog.String("content_type", f.ContentType),
	)

	if err := u.Check(f); err != nil {
		log.Info("upload rejected", sl.Err(err))
		u.record(metrics.ResultRejected)
		return nil, err
	}

	// the declared size may lie; never read past the limit
	data, err := io.ReadAll(io.LimitReader(f.Body, MaxFileSize+1))
	if err != nil {
		log.Error("failed to read upload", sl.Err(err))
		u.record(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUploadFailed, err)
	}
	if int64(len(data)) > MaxFileSize {
		log.Info("upload rejected", slog.Int("read", len(data)))
		u.record(metrics.ResultRejected)
		return nil, ErrFileTooLarge
	}

	contentType := f.ContentType
	ext := extension(f.Name)

	if u.opts.Normalize {
		if scaled, ok := u.normalize(log, data); ok {
			data = scaled
			contentType = "image/jpeg"
			ext = "jpg"
		}
	}

	key := objectKey(u.now(), ext)

	started := time.Now()
	path, err := u.store.Upload(ctx, key, contentType, bytes.NewReader(data))
	if u.metrics != nil {
		u.metrics.ObserveRemote("avatar_upload", time.Since(started).Seconds())
	}
	if err != nil {
		log.Error("failed to upload avatar", slog.String("key", key), sl.Err(err))
		u.record(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUploadFailed, err)
	}

	publicURL := u.store.PublicURL(path)
	if !u.fromStorage(publicURL) {
		log.Error("storage returned a foreign public url", slog.String("url", publicURL))
		u.record(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w: invalid public url %q", op, ErrUploadFailed, publicURL)
	}

	u.record(metrics.ResultOK)
	log.Info("avatar uploaded", slog.String("path", path))

	return &Result{URL: publicURL, Path: path}, nil
}

func (u *Uploader) Delete(ctx context.Context, path string) error {
	const op = "services.avatar.Delete"

	if err := u.store.Remove(ctx, path); err != nil {
		u.log.Error("failed to delete avatar", slog.String("op", op), slog.String("path", path), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SafeURL returns raw when it is an https URL on the object storage host, otherwise "".
func (u *Uploader) SafeURL(raw string) string {
	if raw == "" || !u.fromStorage(raw) {
		return ""
	}
	return raw
}

func (u *Uploader) fromStorage(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "https" {
		return false
	}
	return parsed.Hostname() != "" && strings.EqualFold(parsed.Hostname(), u.store.Host())
}

// normalize fits the image into a MaxDimension square. It reports false when
// the original should be uploaded untouched.
func (u *Uploader) normalize(log *slog.Logger, data []byte) ([]byte, bool) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug("image left as is", sl.Err(err))
		return nil, false
	}

	b := src.Bounds()
	limit := u.opts.MaxDimension
	if b.Dx() <= limit && b.Dy() <= limit {
		return nil, false
	}

	w, h := limit, limit
	if b.Dx() > b.Dy() {
		h = max(1, b.Dy()*limit/b.Dx())
	} else {
		w = max(1, b.Dx()*limit/b.Dy())
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: u.opts.Quality}); err != nil {
		log.Warn("failed to encode scaled image", sl.Err(err))
		return nil, false
	}

	log.Debug("image scaled",
		slog.String("format", format),
		slog.Int("from_width", b.Dx()),
		slog.Int("from_height", b.Dy()),
		slog.Int("width", w),
		slog.Int("height", h),
	)

	return buf.Bytes(), true
}

func (u *Uploader) record(result string) {
	if u.metrics != nil {
		u.metrics.AvatarUpload(result)
	}
}

// UserMessage turns an upload error into the text shown next to the form.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileTooLarge):
		return "file size is limited to 5MB"
	case errors.Is(err, ErrNotImage):
		return "only image files can be uploaded"
	default:
		return "file upload failed"
	}
}

func objectKey(now time.Time, ext string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + random + "." + ext
}

func extension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || len(ext) > 5 {
		return "jpg"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "jpg"
		}
	}
	return ext
}
