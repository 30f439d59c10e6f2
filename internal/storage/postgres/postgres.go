package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = "id, nickname, age, thumbnail_url, created_at, updated_at"

type Storage struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func Config(dsn string, log *slog.Logger) (*pgxpool.Config, error) {
	const defaultMaxConns = int32(10)
	const defaultMinConns = int32(0)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 30
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = defaultMaxConns
	dbConfig.MinConns = defaultMinConns
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	dbConfig.BeforeClose = func(conn *pgx.Conn) {
		log.Debug("closed a database connection")
	}

	return dbConfig, nil
}

func New(ctx context.Context, dsn string, log *slog.Logger) (*Storage, error) {
	const op = "storage.postgres.New"

	cfg, err := Config(dsn, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, log: log}, nil
}

func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.postgres.Ping"

	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var profile domain.Profile
	err := row.Scan(
		&profile.ID,
		&profile.Nickname,
		&profile.Age,
		&profile.ThumbnailURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *Storage) CreateProfile(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error) {
	const op = "storage.postgres.CreateProfile"

	query := `
		INSERT INTO profiles (id, nickname, age, thumbnail_url)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + profileColumns

	row := s.db.QueryRow(ctx, query, uuid.New().String(), req.Nickname, req.Age, req.ThumbnailURL)

	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("profile inserted", slog.String("profile_id", profile.ID))
	return profile, nil
}

func (s *Storage) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	const op = "storage.postgres.GetProfile"

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profile, err := scanProfile(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return profile, nil
}

func (s *Storage) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	const op = "storage.postgres.UpdateProfile"

	// Build dynamic query
	var setParts []string
	var args []any
	argIndex := 1

	if req.Nickname != nil {
		setParts = append(setParts, fmt.Sprintf("nickname = $%d", argIndex))
		args = append(args, *req.Nickname)
		argIndex++
	}
	if req.Age != nil {
		setParts = append(setParts, fmt.Sprintf("age = $%d", argIndex))
		args = append(args, *req.Age)
		argIndex++
	}
	if req.ThumbnailURL != nil {
		setParts = append(setParts, fmt.Sprintf("thumbnail_url = $%d", argIndex))
		args = append(args, *req.ThumbnailURL)
		argIndex++
	}

	updatedAt := req.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, updatedAt)
	argIndex++

	query := fmt.Sprintf(`
		UPDATE profiles
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(setParts, ", "), argIndex, profileColumns)

	args = append(args, req.ID)

	profile, err := scanProfile(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("profile updated", slog.String("profile_id", profile.ID))
	return profile, nil
}

func (s *Storage) DeleteProfile(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteProfile"

	result, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
	}

	s.log.Debug("profile deleted", slog.String("profile_id", id))
	return nil
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	const op = "storage.postgres.ListProfiles"

	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: query profiles: %w", op, err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan profile: %w", op, err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return profiles, nil
}
