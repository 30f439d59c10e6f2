package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/response"
	"github.com/kimhyunwoooo/kids-edu/internal/services/avatar"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
	"github.com/kimhyunwoooo/kids-edu/internal/validator"
)

const maxJSONBody = 1 << 20

type createProfileBody struct {
	Nickname     string  `json:"nickname"`
	Age          int     `json:"age"`
	ThumbnailURL *string `json:"thumbnail_url"`
}

type updateProfileBody struct {
	Nickname     *string `json:"nickname"`
	Age          *int    `json:"age"`
	ThumbnailURL *string `json:"thumbnail_url"`
}

type selectProfileBody struct {
	ID string `json:"id"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *handler) apiListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		response.Error(w, http.StatusBadGateway, h.profiles.LastError())
		return
	}
	response.JSON(w, http.StatusOK, profiles)
}

func (h *handler) apiCreateProfile(w http.ResponseWriter, r *http.Request) {
	var body createProfileBody
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Nickname = strings.TrimSpace(body.Nickname)

	v := validator.New()
	validator.ValidateProfileInput(v, body.Nickname, body.Age)
	if !v.Valid() {
		response.FieldErrors(w, http.StatusUnprocessableEntity, "validation failed", v.Errors)
		return
	}

	created, err := h.profiles.Create(r.Context(), domain.CreateProfileRequest{
		Nickname:     body.Nickname,
		Age:          body.Age,
		ThumbnailURL: body.ThumbnailURL,
	})
	if err != nil {
		response.Error(w, remoteStatus(err), h.profiles.LastError())
		return
	}

	response.JSON(w, http.StatusCreated, created)
}

func (h *handler) apiGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			response.Error(w, http.StatusNotFound, "profile not found")
			return
		}
		response.Error(w, http.StatusBadGateway, "failed to load profile")
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func (h *handler) apiUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body updateProfileBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Nickname != nil {
		trimmed := strings.TrimSpace(*body.Nickname)
		body.Nickname = &trimmed
	}

	v := validator.New()
	validator.ValidateProfilePatch(v, body.Nickname, body.Age)
	if !v.Valid() {
		response.FieldErrors(w, http.StatusUnprocessableEntity, "validation failed", v.Errors)
		return
	}

	updated, err := h.profiles.Update(r.Context(), chi.URLParam(r, "id"), domain.UpdateProfileRequest{
		Nickname:     body.Nickname,
		Age:          body.Age,
		ThumbnailURL: body.ThumbnailURL,
	})
	if err != nil {
		response.Error(w, remoteStatus(err), h.profiles.LastError())
		return
	}

	h.reselect(w, r, updated)

	response.JSON(w, http.StatusOK, updated)
}

func (h *handler) apiDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.profiles.Delete(r.Context(), id); err != nil {
		response.Error(w, remoteStatus(err), h.profiles.LastError())
		return
	}

	sel := h.sessions.Selector(w, r)
	if active, err := sel.Get(r.Context()); err == nil && active != nil && active.ID == id {
		if err := sel.Clear(r.Context()); err != nil {
			h.log.Warn("failed to clear deleted profile", sl.Err(err))
		}
	}

	response.JSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *handler) apiUploadAvatar(w http.ResponseWriter, r *http.Request) {
	const op = "http.apiUploadAvatar"

	if h.avatars == nil {
		response.Error(w, http.StatusServiceUnavailable, msgUploadsDisabled)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	defer cleanupForm(r)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.Error(w, http.StatusRequestEntityTooLarge, avatar.UserMessage(avatar.ErrFileTooLarge))
			return
		}
		response.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	if err := checkFile(header); err != nil {
		response.Error(w, uploadStatus(err), avatar.UserMessage(err))
		return
	}

	res, err := h.avatars.Upload(r.Context(), avatar.File{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.log.Warn("avatar upload failed", slog.String("op", op), sl.Err(err))
		response.Error(w, uploadStatus(err), avatar.UserMessage(err))
		return
	}

	response.JSON(w, http.StatusCreated, res)
}

func (h *handler) apiGetActive(w http.ResponseWriter, r *http.Request) {
	p, err := h.sessions.Selector(w, r).Get(r.Context())
	if err != nil {
		response.Error(w, http.StatusServiceUnavailable, "active profile is still loading")
		return
	}
	if p == nil {
		response.Error(w, http.StatusNotFound, "no active profile")
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func (h *handler) apiSetActive(w http.ResponseWriter, r *http.Request) {
	var body selectProfileBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ID) == "" {
		response.FieldErrors(w, http.StatusUnprocessableEntity, "validation failed", map[string]string{"id": "id is required"})
		return
	}

	p, err := h.profiles.Get(r.Context(), body.ID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			response.Error(w, http.StatusNotFound, "profile not found")
			return
		}
		response.Error(w, http.StatusBadGateway, "failed to load profile")
		return
	}

	if err := h.sessions.Selector(w, r).Set(r.Context(), p); err != nil {
		response.Error(w, http.StatusServiceUnavailable, "could not remember the selected profile")
		return
	}

	response.JSON(w, http.StatusOK, p)
}

func (h *handler) apiClearActive(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Selector(w, r).Clear(r.Context()); err != nil {
		response.Error(w, http.StatusServiceUnavailable, "could not clear the active profile")
		return
	}
	response.JSON(w, http.StatusOK, nil)
}

func (h *handler) apiStatus(w http.ResponseWriter, r *http.Request) {
	report := h.status.Check(r.Context())

	status := http.StatusOK
	if !report.Overall {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, report)
}
