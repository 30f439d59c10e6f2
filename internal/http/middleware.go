package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
)

type ctxKey int

const activeProfileKey ctxKey = iota

// ActiveProfile returns the profile confirmed by requireProfile.
func ActiveProfile(ctx context.Context) *domain.Profile {
	p, _ := ctx.Value(activeProfileKey).(*domain.Profile)
	return p
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(slog.String("component", "middleware/logger"))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := log.With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			started := time.Now()
			defer func() {
				entry.Info("request completed",
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.String("duration", time.Since(started).String()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// requireProfile lets a request through only when the browser has a
// confirmed active profile. No profile sends it to the selection screen;
// an unreadable session shows the loading placeholder instead of content.
func (h *handler) requireProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "http.requireProfile"

		p, err := h.sessions.Selector(w, r).Get(r.Context())
		if err != nil {
			h.log.Error("active profile unavailable", slog.String("op", op), sl.Err(err))
			h.loading(w)
			return
		}
		if p == nil {
			http.Redirect(w, r, "/intro", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), activeProfileKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) loading(w http.ResponseWriter) {
	w.Header().Set("Refresh", "2")
	w.Header().Set("Cache-Control", "no-store")
	h.render(w, http.StatusServiceUnavailable, pageLoading, pageData{Title: "Loading"})
}
