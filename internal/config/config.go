// Package config holds the terminal's explicit configuration.
//
// Values come from the process environment, optionally seeded from a
// dotenv file (KASIR_ENV_FILE, default ".env"). Real environment
// variables win over the file. Nothing here is global: callers load a
// Config once and pass the pieces they need to constructors.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/retry"
)

// EnvFileVar names the variable that points at the dotenv file.
const EnvFileVar = "KASIR_ENV_FILE"

const defaultEnvFile = ".env"

// Config is the complete runtime configuration.
type Config struct {
	DBPath string `env:"KASIR_DB_PATH" envDefault:"kasir.db" validate:"required"`

	RemoteBaseURL  string        `env:"KASIR_REMOTE_URL" validate:"omitempty,url,startswith=http"`
	AuthToken      string        `env:"KASIR_AUTH_TOKEN"`
	DeviceID       string        `env:"KASIR_DEVICE_ID"`
	RequestTimeout time.Duration `env:"KASIR_REQUEST_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	RetryMaxAttempts int           `env:"KASIR_RETRY_MAX_ATTEMPTS" envDefault:"3" validate:"gte=1"`
	RetryBaseDelay   time.Duration `env:"KASIR_RETRY_BASE_DELAY" envDefault:"500ms" validate:"gte=0"`
	RetryMultiplier  float64       `env:"KASIR_RETRY_MULTIPLIER" envDefault:"2" validate:"gte=1"`
	RetryMaxDelay    time.Duration `env:"KASIR_RETRY_MAX_DELAY" envDefault:"10s" validate:"gt=0"`

	CatalogPageSize int           `env:"KASIR_CATALOG_PAGE_SIZE" envDefault:"100" validate:"gte=1,lte=500"`
	CatalogMaxPages int           `env:"KASIR_CATALOG_MAX_PAGES" envDefault:"50" validate:"gte=1"`
	SyncInterval    time.Duration `env:"KASIR_SYNC_INTERVAL" envDefault:"0s" validate:"gte=0"`

	// PLUSurcharge is added to the unit price of a 0.25 kg preset line.
	PLUSurcharge int64 `env:"KASIR_PLU_SURCHARGE" envDefault:"1000" validate:"gte=0"`

	LogLevel      string `env:"KASIR_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFile       string `env:"KASIR_LOG_FILE"`
	LogMaxSizeMB  int    `env:"KASIR_LOG_MAX_SIZE_MB" envDefault:"10" validate:"gte=1"`
	LogMaxBackups int    `env:"KASIR_LOG_MAX_BACKUPS" envDefault:"3" validate:"gte=0"`
	LogMaxAgeDays int    `env:"KASIR_LOG_MAX_AGE_DAYS" envDefault:"28" validate:"gte=0"`

	RemoteListenAddr string `env:"KASIR_REMOTE_LISTEN" envDefault:":3000" validate:"required"`
	RemoteDBPath     string `env:"KASIR_REMOTE_DB_PATH" envDefault:"remote.db" validate:"required"`
	RemoteJWTSecret  string `env:"KASIR_REMOTE_JWT_SECRET"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadEnv(os.Environ())
}

// LoadEnv reads the configuration from environ ("KEY=value" pairs) plus
// the dotenv file it points at, then validates it.
func LoadEnv(environ []string) (Config, error) {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	path, explicit := vars[EnvFileVar]
	if !explicit || path == "" {
		path = defaultEnvFile
	}
	fileVars, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, v := range fileVars {
			if _, set := vars[k]; !set {
				vars[k] = v
			}
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read env file %s: %w", path, err)
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// RetryPolicy returns the retry policy for remote calls.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
		Multiplier:  c.RetryMultiplier,
		MaxDelay:    c.RetryMaxDelay,
	}
}

// RemoteConfigured reports whether a remote base URL is set.
func (c Config) RemoteConfigured() bool {
	return c.RemoteBaseURL != ""
}
