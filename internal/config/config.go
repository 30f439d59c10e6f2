package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	SessionCookie = "cookie"
	SessionRedis  = "redis"
)

type Config struct {
	Env            string        `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTPServer     HTTPServer    `yaml:"http_server"`
	Persistence    Persistence   `yaml:"persistence"`
	ObjectStorage  ObjectStorage `yaml:"object_storage"`
	Session        Session       `yaml:"session"`
	Avatar         Avatar        `yaml:"avatar"`
	MigrationsPath string        `yaml:"migrations_path" env:"MIGRATE_PATH" env-default:"./migrations"`
}

type HTTPServer struct {
	Port            int           `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"30s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
}

// Persistence selects where profile records live.
type Persistence struct {
	Driver  string        `yaml:"driver" env:"PERSISTENCE_DRIVER" env-default:"rest"`
	URL     string        `yaml:"url" env:"SUPABASE_URL"`
	APIKey  string        `yaml:"api_key" env:"SUPABASE_ANON_KEY"`
	DSN     string        `yaml:"dsn" env:"DSN_STRING"`
	Table   string        `yaml:"table" env-default:"profiles"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type ObjectStorage struct {
	URL          string        `yaml:"url" env:"SUPABASE_URL"`
	APIKey       string        `yaml:"api_key" env:"SUPABASE_ANON_KEY"`
	Bucket       string        `yaml:"bucket" env:"STORAGE_BUCKET" env-default:"profile-images"`
	CacheControl string        `yaml:"cache_control" env-default:"3600"`
	Timeout      time.Duration `yaml:"timeout" env-default:"30s"`
}

type Session struct {
	Backend       string        `yaml:"backend" env:"SESSION_BACKEND" env-default:"cookie"`
	CookieName    string        `yaml:"cookie_name" env-default:"kidsedu_current_profile"`
	Secret        string        `yaml:"secret" env:"SESSION_SECRET"`
	TTL           time.Duration `yaml:"ttl" env-default:"720h"`
	Secure        bool          `yaml:"secure" env:"SESSION_SECURE"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
}

type Avatar struct {
	Normalize    bool `yaml:"normalize" env:"AVATAR_NORMALIZE"`
	MaxDimension int  `yaml:"max_dimension" env-default:"512"`
	Quality      int  `yaml:"quality" env-default:"85"`
}

// Be careful with panics, we use them only in app launching
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	cfg, err := LoadPath(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// LoadPath reads the yaml file, applies environment overrides and validates the result.
func LoadPath(configPath string) (*Config, error) {
	cfg, err := ReadPath(configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReadPath is LoadPath without validation, for tools that need only part of the config.
func ReadPath(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config path is empty")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the combinations cleanenv cannot express.
func (c *Config) Validate() error {
	switch c.Persistence.Driver {
	case DriverREST:
		if c.Persistence.URL == "" || c.Persistence.APIKey == "" {
			return fmt.Errorf("persistence driver %q needs url and api_key", DriverREST)
		}
	case DriverPostgres:
		if c.Persistence.DSN == "" {
			return fmt.Errorf("persistence driver %q needs dsn", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown persistence driver %q", c.Persistence.Driver)
	}

	switch c.Session.Backend {
	case SessionCookie:
		if len(c.Session.Secret) < 16 {
			return fmt.Errorf("session backend %q needs a secret of at least 16 bytes", SessionCookie)
		}
	case SessionRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session backend %q needs redis_addr", SessionRedis)
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	return nil
}

// ObjectStorageEnabled reports whether avatar uploads can be served.
func (c *Config) ObjectStorageEnabled() bool {
	return c.ObjectStorage.URL != "" && c.ObjectStorage.APIKey != ""
}

// MigrationSource is the golang-migrate source URL for MigrationsPath.
func (c *Config) MigrationSource() string {
	return "file://" + filepath.ToSlash(c.MigrationsPath)
}

// MigrationDatabaseURL turns the postgres DSN into a golang-migrate database URL
// that records applied versions in table.
func (c *Config) MigrationDatabaseURL(table string) (string, error) {
	dsn := strings.TrimSpace(c.Persistence.DSN)
	if dsn == "" {
		return "", errors.New("persistence dsn is required to run migrations")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("dsn scheme %q is not postgres", u.Scheme)
	}

	if table != "" {
		q := u.Query()
		q.Set("x-migrations-table", table)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// fetchConfigPath reads the path from the --config flag, then CONFIG_PATH.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
