package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/validator"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	pageIntro    = "intro.html"
	pageMain     = "main.html"
	pageProgram  = "program.html"
	pageSettings = "settings.html"
	pageDebug    = "debug.html"
	pageLoading  = "loading.html"
)

var pages = []string{pageIntro, pageMain, pageProgram, pageSettings, pageDebug, pageLoading}

type avatarView struct {
	URL      string
	Nickname string
	Initial  string
}

type profileView struct {
	domain.Profile
	Avatar avatarView
}

type formView struct {
	Action   string
	Submit   string
	Nickname string
	Age      string
	Errors   map[string]string
}

type pageData struct {
	Title        string
	Error        string
	Active       *domain.Profile
	ActiveAvatar avatarView
	Profiles     []profileView
	Loaded       bool
	Form         formView
	Edit         *formView
	Programs     []domain.Program
	Program      domain.Program
	Report       domain.StatusReport
	CheckedAt    time.Time
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"ages": func() []int {
			out := make([]int, 0, validator.MaxAge-validator.MinAge+1)
			for age := validator.MinAge; age <= validator.MaxAge; age++ {
				out = append(out, age)
			}
			return out
		},
	}

	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		out[page] = t
	}
	return out, nil
}

func staticFiles() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// render executes into a buffer first so a template error never leaves a half-written page.
func (h *handler) render(w http.ResponseWriter, status int, page string, data pageData) {
	t, ok := h.templates[page]
	if !ok {
		h.log.Error("unknown page", slog.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if data.Active != nil {
		data.ActiveAvatar = h.avatarOf(*data.Active)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.log.Error("failed to render page", slog.String("page", page), sl.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *handler) avatarOf(p domain.Profile) avatarView {
	v := avatarView{Nickname: p.Nickname}
	if h.avatars != nil {
		v.URL = h.avatars.SafeURL(p.Thumbnail())
	}
	if r, _ := utf8.DecodeRuneInString(p.Nickname); r != utf8.RuneError {
		v.Initial = string(r)
	}
	return v
}

func (h *handler) profileViews(profiles []domain.Profile) []profileView {
	out := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileView{Profile: p, Avatar: h.avatarOf(p)})
	}
	return out
}
