package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kimhyunwoooo/kids-edu/internal/app"
	"github.com/kimhyunwoooo/kids-edu/internal/config"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn("no .env file loaded", sl.Err(err))
	}
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting kidsedu",
		slog.String("env", cfg.Env),
		slog.String("persistence", cfg.Persistence.Driver),
		slog.String("session", cfg.Session.Backend),
	)

	application := app.New(log, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	grp, grpCtx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		errCh := application.HTTPServer.Start()

		select {
		case <-grpCtx.Done():
			log.Info("stopping HTTP server")
			return application.Shutdown(cfg.HTTPServer.ShutdownTimeout)
		case err, ok := <-errCh:
			if !ok {
				return nil
			}
			return err
		}
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-stop:
			log.Info("received signal to stop", slog.String("signal", sig.String()))
			cancel()
		case <-grpCtx.Done():
		}
	}()

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", sl.Err(err))
	}

	if err := application.CloseStorage(); err != nil {
		log.Error("failed to close storage", sl.Err(err))
	}
	log.Info("gracefully stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal, config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
