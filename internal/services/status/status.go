package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
)

// Pinger is anything whose connection can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BucketChecker reports whether the avatar bucket exists.
type BucketChecker interface {
	BucketExists(ctx context.Context) (bool, error)
}

// Setting is one piece of configuration the app cannot run without.
type Setting struct {
	Name  string
	Value string
}

type Checker struct {
	log      *slog.Logger
	settings []Setting
	db       Pinger
	bucket   BucketChecker
	sessions Pinger
	timeout  time.Duration
}

func New(log *slog.Logger, settings []Setting, db Pinger, bucket BucketChecker, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Checker{
		log:      log,
		settings: settings,
		db:       db,
		bucket:   bucket,
		timeout:  timeout,
	}
}

// WithSessions adds the server-side session store to the probes.
func (c *Checker) WithSessions(p Pinger) *Checker {
	c.sessions = p
	return c
}

// Check runs every probe. A failing probe only marks its own field false.
func (c *Checker) Check(ctx context.Context) domain.StatusReport {
	const op = "services.status.Check"

	log := c.log.With(slog.String("op", op))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var report domain.StatusReport

	report.Environment = c.checkEnvironment(log)

	if c.db != nil {
		if err := c.db.Ping(ctx); err != nil {
			log.Warn("database check failed", sl.Err(err))
		} else {
			report.Database = true
		}
	}

	if c.bucket != nil {
		if err := c.checkBucket(ctx); err != nil {
			log.Warn("storage check failed", sl.Err(err))
		} else {
			report.Storage = true
		}
	}

	if c.sessions != nil {
		ok := true
		if err := c.sessions.Ping(ctx); err != nil {
			log.Warn("session store check failed", sl.Err(err))
			ok = false
		}
		report.Sessions = &ok
	}

	report.Overall = report.Environment && report.Database && report.Storage
	if report.Sessions != nil {
		report.Overall = report.Overall && *report.Sessions
	}

	log.Debug("status checked",
		slog.Bool("environment", report.Environment),
		slog.Bool("database", report.Database),
		slog.Bool("storage", report.Storage),
		slog.Bool("overall", report.Overall),
	)

	return report
}

func (c *Checker) checkEnvironment(log *slog.Logger) bool {
	ok := true
	for _, s := range c.settings {
		if s.Value == "" {
			log.Warn("required setting is missing", slog.String("setting", s.Name))
			ok = false
		}
	}
	return ok
}

func (c *Checker) checkBucket(ctx context.Context) error {
	exists, err := c.bucket.BucketExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("check bucket: %w", storage.ErrBucketNotFound)
	}
	return nil
}
