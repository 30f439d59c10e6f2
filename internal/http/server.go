package http

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui"
	"github.com/swaggest/swgui/v5emb"
)

//go:embed swagger/swagger.json
var swaggerJSON []byte

type Server struct {
	httpServer *http.Server
	port       int
	log        *slog.Logger
}

type ServerOptions struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func NewServer(opts ServerOptions, handler http.Handler, log *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           handler,
			ReadHeaderTimeout: opts.ReadTimeout,
			ReadTimeout:       opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       opts.IdleTimeout,
		},
		port: opts.Port,
		log:  log,
	}
}

// Start serves in the background. A listen failure is reported on the returned channel.
func (s *Server) Start() <-chan error {
	const op = "http.Server.Start"

	log := s.log.With(
		slog.String("op", op),
		slog.Int("port", s.port),
	)

	errCh := make(chan error, 1)

	go func() {
		log.Info("http server started", slog.String("addr", s.httpServer.Addr))

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s: %w", op, err)
		}
		close(errCh)
	}()

	return errCh
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func setupSwaggerUI(r chi.Router) {
	swaggerHandler := v5emb.NewHandlerWithConfig(swgui.Config{
		Title:       "KidsEdu API",
		SwaggerJSON: "/swagger/swagger.json",
		BasePath:    "/swagger/",
		ShowTopBar:  true,
	})

	r.Get("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(swaggerJSON)
	})
	r.Handle("/swagger/*", swaggerHandler)
	r.Handle("/swagger", http.RedirectHandler("/swagger/", http.StatusFound))
}
