package http

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/services/avatar"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
	"github.com/kimhyunwoooo/kids-edu/internal/validator"
)

// maxFormSize leaves room for the text fields next to the largest accepted image.
const maxFormSize = avatar.MaxFileSize + 1<<20

const msgUploadsDisabled = "avatar uploads are not available right now"

type profileForm struct {
	Nickname string
	AgeRaw   string
	Age      int
	file     *multipart.FileHeader
}

// parseProfileForm reads and validates a profile form. Nothing here touches the network.
func (h *handler) parseProfileForm(w http.ResponseWriter, r *http.Request) (profileForm, *validator.Validator) {
	v := validator.New()

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)

	err := r.ParseMultipartForm(1 << 20)
	switch {
	case err == nil:
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			v.AddError("form", "could not read the form")
		}
	default:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			v.AddError("avatar", avatar.UserMessage(avatar.ErrFileTooLarge))
		} else {
			h.log.Warn("failed to parse form", sl.Err(err))
			v.AddError("form", "could not read the form")
		}
	}

	f := profileForm{
		Nickname: strings.TrimSpace(r.PostFormValue("nickname")),
		AgeRaw:   strings.TrimSpace(r.PostFormValue("age")),
	}
	f.Age, _ = strconv.Atoi(f.AgeRaw)

	validator.ValidateProfileInput(v, f.Nickname, f.Age)

	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["avatar"]; len(files) > 0 && files[0].Filename != "" {
			f.file = files[0]
		}
	}

	if f.file != nil {
		if h.avatars == nil {
			v.AddError("avatar", msgUploadsDisabled)
		} else if err := checkFile(f.file); err != nil {
			v.AddError("avatar", avatar.UserMessage(err))
		}
	}

	return f, v
}

func checkFile(fh *multipart.FileHeader) error {
	if fh.Size > avatar.MaxFileSize {
		return avatar.ErrFileTooLarge
	}
	if !strings.HasPrefix(strings.ToLower(fh.Header.Get("Content-Type")), "image/") {
		return avatar.ErrNotImage
	}
	return nil
}

// uploadAvatar stores the form's image, if any.
func (h *handler) uploadAvatar(r *http.Request, f profileForm) (*avatar.Result, error) {
	if f.file == nil {
		return nil, nil
	}

	file, err := f.file.Open()
	if err != nil {
		return nil, errors.Join(avatar.ErrUploadFailed, err)
	}
	defer func() {
		_ = file.Close()
	}()

	res, err := h.avatars.Upload(r.Context(), avatar.File{
		Name:        f.file.Filename,
		Size:        f.file.Size,
		ContentType: f.file.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		return nil, err
	}

	h.log.Debug("avatar stored", slog.String("path", res.Path))

	return res, nil
}

// discardAvatar removes an image whose profile write failed.
func (h *handler) discardAvatar(r *http.Request, res *avatar.Result) {
	if res == nil {
		return
	}
	if err := h.avatars.Delete(r.Context(), res.Path); err != nil {
		h.log.Warn("failed to remove orphaned avatar", slog.String("path", res.Path), sl.Err(err))
	}
}

func thumbnailOf(res *avatar.Result) *string {
	if res == nil {
		return nil
	}
	return &res.URL
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// remoteStatus maps a profile store failure to a response status.
func remoteStatus(err error) int {
	if errors.Is(err, storage.ErrProfileNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// uploadStatus maps an avatar failure to a response status.
func uploadStatus(err error) int {
	switch {
	case errors.Is(err, avatar.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, avatar.ErrNotImage):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadGateway
	}
}
