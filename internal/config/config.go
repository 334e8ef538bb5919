// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration of the server and historian binaries.
// Values come from the process environment; cmd binaries load a .env file first via godotenv.
type Config struct {
	Env string `env:"APP_ENV" envDefault:"production"`

	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Room      RoomConfig
	Auth      AuthConfig
	Log       LogConfig
	Historian HistorianConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	PingInterval    time.Duration `env:"WS_PING_INTERVAL" envDefault:"25s"`
	WriteTimeout    time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"5s"`
	OutboxSize      int           `env:"WS_OUTBOX_SIZE" envDefault:"32"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Addr is the listen address for net/http.
func (s ServerConfig) Addr() string {
	return ":" + s.Port
}

type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Name     string `env:"PG_DATABASE" envDefault:"tictactoe"`
	SSLMode  string `env:"PG_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"PG_MAX_CONNS" envDefault:"10"`
	Migrate  bool   `env:"DB_MIGRATE" envDefault:"true"`
}

// DSN returns DATABASE_URL when set, otherwise a postgres URL built from the PG_* parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	QueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"tictactoe_events"`
	Enabled   bool   `env:"ACTION_LOG_ENABLED" envDefault:"true"`
}

type RoomConfig struct {
	// GracePeriod is how long a closed room stays in memory before it is purged.
	GracePeriod time.Duration `env:"ROOM_GRACE_PERIOD" envDefault:"30s"`
}

type AuthConfig struct {
	// TokenExpire is a Go duration, or "never"/"0"/empty for tokens without expiry.
	TokenExpire string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`
}

// TokenTTL parses TokenExpire. Zero means tokens never expire.
func (a AuthConfig) TokenTTL() (time.Duration, error) {
	switch a.TokenExpire {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(a.TokenExpire)
	if err != nil {
		return 0, fmt.Errorf("invalid TOKEN_EXPIRE_TIME %q: %w", a.TokenExpire, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid TOKEN_EXPIRE_TIME %q: negative", a.TokenExpire)
	}
	return d, nil
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

type HistorianConfig struct {
	BatchSize     int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"500ms"`
	PopTimeout    time.Duration `env:"HISTORIAN_POP_TIMEOUT" envDefault:"3s"`
	Inactivity    time.Duration `env:"GAME_INACTIVITY_TIMEOUT" envDefault:"10m"`
	SweepInterval time.Duration `env:"HISTORIAN_SWEEP_INTERVAL" envDefault:"1m"`
}

// Load parses the environment and validates the values env tags cannot express.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Development reports whether APP_ENV is "development".
func (c Config) Development() bool {
	return c.Env == "development"
}

func (c Config) validate() error {
	if c.Room.GracePeriod <= 0 {
		return fmt.Errorf("ROOM_GRACE_PERIOD must be positive, got %s", c.Room.GracePeriod)
	}
	if c.Server.PingInterval <= 0 {
		return fmt.Errorf("WS_PING_INTERVAL must be positive, got %s", c.Server.PingInterval)
	}
	if c.Server.OutboxSize < 1 {
		return fmt.Errorf("WS_OUTBOX_SIZE must be at least 1, got %d", c.Server.OutboxSize)
	}
	if c.Historian.BatchSize < 1 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be at least 1, got %d", c.Historian.BatchSize)
	}
	if _, err := c.Auth.TokenTTL(); err != nil {
		return err
	}
	return nil
}
