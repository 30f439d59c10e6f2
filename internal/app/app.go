package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kimhyunwoooo/kids-edu/internal/config"
	httpserver "github.com/kimhyunwoooo/kids-edu/internal/http"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/metrics"
	"github.com/kimhyunwoooo/kids-edu/internal/services/avatar"
	"github.com/kimhyunwoooo/kids-edu/internal/services/profile"
	"github.com/kimhyunwoooo/kids-edu/internal/services/status"
	"github.com/kimhyunwoooo/kids-edu/internal/session"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
	"github.com/kimhyunwoooo/kids-edu/internal/storage/memory"
	"github.com/kimhyunwoooo/kids-edu/internal/storage/objectstore"
	"github.com/kimhyunwoooo/kids-edu/internal/storage/postgres"
	"github.com/kimhyunwoooo/kids-edu/internal/storage/rest"
)

type App struct {
	HTTPServer *httpserver.Server
	Storage    storage.ProfileStorage
	Sessions   *session.RedisBackend
	log        *slog.Logger
}

// New wires every component from cfg. It panics on failure, as it only runs at launch.
func New(log *slog.Logger, cfg *config.Config) *App {
	const op = "app.New"

	profiles, err := newProfileStorage(log, cfg.Persistence)
	if err != nil {
		panic(fmt.Errorf("%s: %w", op, err))
	}

	m := metrics.New()

	var (
		uploader *avatar.Uploader
		bucket   status.BucketChecker
	)
	if cfg.ObjectStorageEnabled() {
		objects, err := objectstore.New(objectstore.Options{
			BaseURL:      cfg.ObjectStorage.URL,
			APIKey:       cfg.ObjectStorage.APIKey,
			Bucket:       cfg.ObjectStorage.Bucket,
			CacheControl: cfg.ObjectStorage.CacheControl,
			Timeout:      cfg.ObjectStorage.Timeout,
		}, log)
		if err != nil {
			panic(fmt.Errorf("%s: %w", op, err))
		}

		uploader = avatar.New(log, objects, m, avatar.Options{
			Normalize:    cfg.Avatar.Normalize,
			MaxDimension: cfg.Avatar.MaxDimension,
			Quality:      cfg.Avatar.Quality,
		})
		bucket = objects
		log.Info("avatar uploads enabled",
			slog.String("host", objects.Host()),
			slog.String("bucket", objects.Bucket()),
		)
	} else {
		log.Warn("object storage is not configured, avatar uploads are disabled")
	}

	backend, redisBackend, err := newSessionBackend(cfg.Session)
	if err != nil {
		panic(fmt.Errorf("%s: %w", op, err))
	}

	checker := status.New(log, requiredSettings(cfg), profiles, bucket, cfg.Persistence.Timeout)
	if redisBackend != nil {
		checker.WithSessions(redisBackend)
	}

	deps := httpserver.Deps{
		Log:            log,
		Profiles:       profile.New(log, profiles, m),
		Sessions:       session.NewManager(log, backend),
		Status:         checker,
		Metrics:        m.Handler(),
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
	}
	// a nil *Uploader must not become a non-nil interface
	if uploader != nil {
		deps.Avatars = uploader
	}

	router, err := httpserver.NewRouter(deps)
	if err != nil {
		panic(fmt.Errorf("%s: %w", op, err))
	}

	server := httpserver.NewServer(httpserver.ServerOptions{
		Port:         cfg.HTTPServer.Port,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}, router, log)

	return &App{
		HTTPServer: server,
		Storage:    profiles,
		Sessions:   redisBackend,
		log:        log,
	}
}

func newProfileStorage(log *slog.Logger, cfg config.Persistence) (storage.ProfileStorage, error) {
	switch cfg.Driver {
	case config.DriverREST:
		return rest.New(cfg.URL, cfg.APIKey, cfg.Table, cfg.Timeout, log)
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return postgres.New(ctx, cfg.DSN, log)
	case config.DriverMemory:
		log.Warn("profiles are kept in memory and lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
	}
}

func newSessionBackend(cfg config.Session) (session.Backend, *session.RedisBackend, error) {
	switch cfg.Backend {
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b := session.NewRedisBackend(client, session.RedisOptions{
			TTL:    cfg.TTL,
			Secure: cfg.Secure,
		})
		return b, b, nil
	default:
		b, err := session.NewCookieBackend(session.CookieOptions{
			Name:   cfg.CookieName,
			Secret: cfg.Secret,
			TTL:    cfg.TTL,
			Secure: cfg.Secure,
		})
		return b, nil, err
	}
}

func requiredSettings(cfg *config.Config) []status.Setting {
	var out []status.Setting
	switch cfg.Persistence.Driver {
	case config.DriverREST:
		out = append(out,
			status.Setting{Name: "SUPABASE_URL", Value: cfg.Persistence.URL},
			status.Setting{Name: "SUPABASE_ANON_KEY", Value: cfg.Persistence.APIKey},
		)
	case config.DriverPostgres:
		out = append(out, status.Setting{Name: "DSN_STRING", Value: cfg.Persistence.DSN})
	}
	return append(out,
		status.Setting{Name: "object_storage.url", Value: cfg.ObjectStorage.URL},
		status.Setting{Name: "object_storage.api_key", Value: cfg.ObjectStorage.APIKey},
	)
}

func (a *App) CloseStorage() error {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return err
		}
		a.log.Info("closed profile storage")
	}
	if a.Sessions != nil {
		if err := a.Sessions.Close(); err != nil {
			return err
		}
		a.log.Info("closed session store")
	}
	return nil
}

// Shutdown stops the HTTP server, waiting at most timeout for requests in flight.
func (a *App) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.HTTPServer.Stop(ctx)
}
