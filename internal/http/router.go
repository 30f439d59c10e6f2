package http

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/services/avatar"
	"github.com/kimhyunwoooo/kids-edu/internal/session"
)

type ProfileService interface {
	List(ctx context.Context) ([]domain.Profile, error)
	Profiles() []domain.Profile
	Loaded() bool
	LastError() string
	Get(ctx context.Context, id string) (*domain.Profile, error)
	Create(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error)
	Update(ctx context.Context, id string, req domain.UpdateProfileRequest) (*domain.Profile, error)
	Delete(ctx context.Context, id string) error
}

type AvatarUploader interface {
	Upload(ctx context.Context, f avatar.File) (*avatar.Result, error)
	Delete(ctx context.Context, path string) error
	SafeURL(raw string) string
}

type StatusChecker interface {
	Check(ctx context.Context) domain.StatusReport
}

type SessionManager interface {
	Selector(w http.ResponseWriter, r *http.Request) *session.Selector
}

// Deps is everything the router serves. Avatars and Metrics may be nil.
type Deps struct {
	Log            *slog.Logger
	Profiles       ProfileService
	Avatars        AvatarUploader
	Sessions       SessionManager
	Status         StatusChecker
	Metrics        http.Handler
	AllowedOrigins []string
}

type handler struct {
	log       *slog.Logger
	profiles  ProfileService
	avatars   AvatarUploader
	sessions  SessionManager
	status    StatusChecker
	templates map[string]*template.Template
}

func NewRouter(d Deps) (http.Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	h := &handler{
		log:       d.Log,
		profiles:  d.Profiles,
		avatars:   d.Avatars,
		sessions:  d.Sessions,
		status:    d.Status,
		templates: templates,
	}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/static/*", http.StripPrefix("/static/", staticFiles()))

	r.Get("/", h.home)
	r.Get("/debug", h.debug)
	r.Post("/logout", h.logout)

	r.Route("/intro", func(r chi.Router) {
		r.Get("/", h.intro)
		r.Post("/profiles", h.introCreate)
		r.Post("/profiles/{id}/select", h.introSelect)
		r.Post("/profiles/{id}/edit", h.introEdit)
		r.Post("/profiles/{id}/delete", h.introDelete)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireProfile)

		r.Get("/main", h.dashboard)
		r.Get("/programs/{id}", h.program)
		r.Get("/profile-settings", h.settings)
		r.Post("/profile-settings", h.settingsSave)
		r.Post("/profile-settings/delete", h.settingsDelete)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/profiles", h.apiListProfiles)
		r.Post("/profiles", h.apiCreateProfile)
		r.Get("/profiles/{id}", h.apiGetProfile)
		r.Patch("/profiles/{id}", h.apiUpdateProfile)
		r.Delete("/profiles/{id}", h.apiDeleteProfile)

		r.Post("/avatars", h.apiUploadAvatar)

		r.Get("/session/profile", h.apiGetActive)
		r.Put("/session/profile", h.apiSetActive)
		r.Delete("/session/profile", h.apiClearActive)

		r.Get("/status", h.apiStatus)
	})

	setupSwaggerUI(r)

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	return r, nil
}
