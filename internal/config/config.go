// Package config loads process configuration from the environment.
//
// Sources, lowest to highest precedence:
//  1. envDefault tags below
//  2. a .env file in the working directory (missing is fine)
//  3. real environment variables
//
// Everything is validated up front so a missing SECRET_KEY or MONGO_URI
// stops the process before it serves a single request.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	SecretKey string `env:"SECRET_KEY" validate:"required,min=16"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	StoreDriver   string        `env:"STORE_DRIVER" envDefault:"mongo" validate:"oneof=mongo sqlite"`
	MongoURI      string        `env:"MONGO_URI" validate:"required_if=StoreDriver mongo"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"loginApp" validate:"required"`
	MongoTimeout  time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	DBPath        string        `env:"DB_PATH" envDefault:"data/gatehouse.db" validate:"required_if=StoreDriver sqlite"`

	// RedisURL selects the shared session store; empty keeps sessions in
	// process memory, which only works for a single instance.
	RedisURL           string        `env:"REDIS_URL"`
	SessionLifetime    time.Duration `env:"SESSION_LIFETIME" envDefault:"12h" validate:"gt=0"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m" validate:"gt=0,ltefield=SessionLifetime"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap builds a Config from vars alone, ignoring the process
// environment. Tests use it.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and reports all problems in one error.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

// envNames maps struct fields to the variables users actually set.
var envNames = map[string]string{
	"Port":               "PORT",
	"SecretKey":          "SECRET_KEY",
	"LogLevel":           "LOG_LEVEL",
	"StoreDriver":        "STORE_DRIVER",
	"MongoURI":           "MONGO_URI",
	"MongoDatabase":      "MONGO_DATABASE",
	"MongoTimeout":       "MONGO_TIMEOUT",
	"DBPath":             "DB_PATH",
	"SessionLifetime":    "SESSION_LIFETIME",
	"SessionIdleTimeout": "SESSION_IDLE_TIMEOUT",
}

func describe(fe validator.FieldError) string {
	name, ok := envNames[fe.Field()]
	if !ok {
		name = fe.Field()
	}

	switch fe.Tag() {
	case "required", "required_if":
		return name + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed SESSION_LIFETIME", name)
	}
	return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
}

// SlogLevel converts LogLevel for slog.HandlerOptions.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
