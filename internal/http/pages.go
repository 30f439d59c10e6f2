package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/services/avatar"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
	"github.com/kimhyunwoooo/kids-edu/internal/validator"
)

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	p, err := h.sessions.Selector(w, r).Get(r.Context())
	if err != nil {
		h.log.Error("active profile unavailable", slog.String("op", "http.home"), sl.Err(err))
		h.loading(w)
		return
	}
	if p != nil {
		http.Redirect(w, r, "/main", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/intro", http.StatusFound)
}

func createForm() formView {
	return formView{
		Action: "/intro/profiles",
		Submit: "Create profile",
		Age:    strconv.Itoa(validator.MinAge),
		Errors: map[string]string{},
	}
}

func editForm(action, submit string, p domain.Profile) *formView {
	return &formView{
		Action:   action,
		Submit:   submit,
		Nickname: p.Nickname,
		Age:      strconv.Itoa(p.Age),
		Errors:   map[string]string{},
	}
}

// introData lists profiles, falling back to the cached list when the store is unreachable.
func (h *handler) introData(r *http.Request) pageData {
	data := pageData{
		Title: "Choose a profile",
		Form:  createForm(),
	}

	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		data.Error = h.profiles.LastError()
		profiles = h.profiles.Profiles()
	}
	data.Profiles = h.profileViews(profiles)
	data.Loaded = h.profiles.Loaded()

	return data
}

// cachedIntroData renders the intro page after a failed action without another round trip.
func (h *handler) cachedIntroData() pageData {
	return pageData{
		Title:    "Choose a profile",
		Form:     createForm(),
		Profiles: h.profileViews(h.profiles.Profiles()),
		Loaded:   h.profiles.Loaded(),
	}
}

func (h *handler) intro(w http.ResponseWriter, r *http.Request) {
	data := h.introData(r)

	if id := r.URL.Query().Get("edit"); id != "" {
		for _, p := range data.Profiles {
			if p.ID == id {
				data.Edit = editForm("/intro/profiles/"+p.ID+"/edit", "Save", p.Profile)
				break
			}
		}
		if data.Edit == nil && data.Error == "" {
			data.Error = "profile not found"
		}
	}

	h.render(w, http.StatusOK, pageIntro, data)
}

func (h *handler) introCreate(w http.ResponseWriter, r *http.Request) {
	const op = "http.introCreate"

	log := h.log.With(slog.String("op", op))

	form, v := h.parseProfileForm(w, r)
	defer cleanupForm(r)

	data := h.cachedIntroData()
	data.Form.Nickname = form.Nickname
	data.Form.Age = form.AgeRaw

	if !v.Valid() {
		data.Form.Errors = v.Errors
		h.render(w, http.StatusUnprocessableEntity, pageIntro, data)
		return
	}

	uploaded, err := h.uploadAvatar(r, form)
	if err != nil {
		data.Form.Errors = map[string]string{"avatar": avatar.UserMessage(err)}
		h.render(w, uploadStatus(err), pageIntro, data)
		return
	}

	created, err := h.profiles.Create(r.Context(), domain.CreateProfileRequest{
		Nickname:     form.Nickname,
		Age:          form.Age,
		ThumbnailURL: thumbnailOf(uploaded),
	})
	if err != nil {
		h.discardAvatar(r, uploaded)
		data.Error = h.profiles.LastError()
		h.render(w, remoteStatus(err), pageIntro, data)
		return
	}

	if err := h.sessions.Selector(w, r).Set(r.Context(), created); err != nil {
		log.Error("failed to select new profile", sl.Err(err))
		http.Redirect(w, r, "/intro", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/main", http.StatusSeeOther)
}

func (h *handler) introSelect(w http.ResponseWriter, r *http.Request) {
	const op = "http.introSelect"

	id := chi.URLParam(r, "id")

	p, err := h.profiles.Get(r.Context(), id)
	if err != nil {
		data := h.cachedIntroData()
		data.Error = "profile not found"
		if !errors.Is(err, storage.ErrProfileNotFound) {
			data.Error = "failed to load profile"
		}
		h.render(w, remoteStatus(err), pageIntro, data)
		return
	}

	if err := h.sessions.Selector(w, r).Set(r.Context(), p); err != nil {
		h.log.Error("failed to select profile", slog.String("op", op), sl.Err(err))
		data := h.cachedIntroData()
		data.Error = "could not remember the selected profile, please try again"
		h.render(w, http.StatusServiceUnavailable, pageIntro, data)
		return
	}

	http.Redirect(w, r, "/main", http.StatusSeeOther)
}

func (h *handler) introEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	form, v := h.parseProfileForm(w, r)
	defer cleanupForm(r)

	data := h.cachedIntroData()
	data.Edit = &formView{
		Action:   "/intro/profiles/" + id + "/edit",
		Submit:   "Save",
		Nickname: form.Nickname,
		Age:      form.AgeRaw,
		Errors:   map[string]string{},
	}

	if !v.Valid() {
		data.Edit.Errors = v.Errors
		h.render(w, http.StatusUnprocessableEntity, pageIntro, data)
		return
	}

	updated, status, ok := h.saveProfile(r, id, form, &data, data.Edit)
	if !ok {
		h.render(w, status, pageIntro, data)
		return
	}

	h.reselect(w, r, updated)

	http.Redirect(w, r, "/intro", http.StatusSeeOther)
}

func (h *handler) introDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.profiles.Delete(r.Context(), id); err != nil {
		data := h.cachedIntroData()
		data.Error = h.profiles.LastError()
		h.render(w, remoteStatus(err), pageIntro, data)
		return
	}

	sel := h.sessions.Selector(w, r)
	if active, err := sel.Get(r.Context()); err == nil && active != nil && active.ID == id {
		if err := sel.Clear(r.Context()); err != nil {
			h.log.Warn("failed to clear deleted profile", sl.Err(err))
		}
	}

	http.Redirect(w, r, "/intro", http.StatusSeeOther)
}

// saveProfile uploads the form's avatar and applies the update. On failure it
// fills in the page or form error and returns the status to answer with.
func (h *handler) saveProfile(r *http.Request, id string, form profileForm, data *pageData, view *formView) (*domain.Profile, int, bool) {
	uploaded, err := h.uploadAvatar(r, form)
	if err != nil {
		view.Errors["avatar"] = avatar.UserMessage(err)
		return nil, uploadStatus(err), false
	}

	nickname, age := form.Nickname, form.Age
	updated, err := h.profiles.Update(r.Context(), id, domain.UpdateProfileRequest{
		Nickname:     &nickname,
		Age:          &age,
		ThumbnailURL: thumbnailOf(uploaded),
	})
	if err != nil {
		h.discardAvatar(r, uploaded)
		data.Error = h.profiles.LastError()
		return nil, remoteStatus(err), false
	}

	return updated, http.StatusOK, true
}

// reselect refreshes the browser's snapshot when the edited profile is the active one.
func (h *handler) reselect(w http.ResponseWriter, r *http.Request, updated *domain.Profile) {
	sel := h.sessions.Selector(w, r)

	active, err := sel.Get(r.Context())
	if err != nil || active == nil || active.ID != updated.ID {
		return
	}
	if err := sel.Set(r.Context(), updated); err != nil {
		h.log.Warn("failed to refresh active profile", sl.Err(err))
	}
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageMain, pageData{
		Title:    "Programs",
		Active:   ActiveProfile(r.Context()),
		Programs: domain.Programs(),
	})
}

func (h *handler) program(w http.ResponseWriter, r *http.Request) {
	program, ok := domain.FindProgram(chi.URLParam(r, "id"))
	if !ok {
		http.Redirect(w, r, "/main", http.StatusFound)
		return
	}

	h.render(w, http.StatusOK, pageProgram, pageData{
		Title:   program.Title,
		Active:  ActiveProfile(r.Context()),
		Program: program,
	})
}

func (h *handler) settingsData(r *http.Request) pageData {
	active := ActiveProfile(r.Context())
	return pageData{
		Title:  "Profile settings",
		Active: active,
		Form:   *editForm("/profile-settings", "Save changes", *active),
	}
}

func (h *handler) settings(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageSettings, h.settingsData(r))
}

func (h *handler) settingsSave(w http.ResponseWriter, r *http.Request) {
	const op = "http.settingsSave"

	active := ActiveProfile(r.Context())

	form, v := h.parseProfileForm(w, r)
	defer cleanupForm(r)

	data := h.settingsData(r)
	data.Form.Nickname = form.Nickname
	data.Form.Age = form.AgeRaw

	if !v.Valid() {
		data.Form.Errors = v.Errors
		h.render(w, http.StatusUnprocessableEntity, pageSettings, data)
		return
	}

	updated, status, ok := h.saveProfile(r, active.ID, form, &data, &data.Form)
	if !ok {
		if status == http.StatusNotFound {
			h.forget(w, r)
			return
		}
		h.render(w, status, pageSettings, data)
		return
	}

	if err := h.sessions.Selector(w, r).Set(r.Context(), updated); err != nil {
		h.log.Error("failed to refresh active profile", slog.String("op", op), sl.Err(err))
	}

	http.Redirect(w, r, "/main", http.StatusSeeOther)
}

func (h *handler) settingsDelete(w http.ResponseWriter, r *http.Request) {
	active := ActiveProfile(r.Context())

	if err := h.profiles.Delete(r.Context(), active.ID); err != nil && !errors.Is(err, storage.ErrProfileNotFound) {
		data := h.settingsData(r)
		data.Error = h.profiles.LastError()
		h.render(w, remoteStatus(err), pageSettings, data)
		return
	}

	h.forget(w, r)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	h.forget(w, r)
}

// forget clears the active profile and returns to the selection screen.
func (h *handler) forget(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Selector(w, r).Clear(r.Context()); err != nil {
		h.log.Warn("failed to clear active profile", sl.Err(err))
	}
	http.Redirect(w, r, "/intro", http.StatusSeeOther)
}

func (h *handler) debug(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageDebug, pageData{
		Title:     "System status",
		Report:    h.status.Check(r.Context()),
		CheckedAt: time.Now(),
	})
}
