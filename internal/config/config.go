package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Filter   FilterConfig
	Export   ExportConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"8084" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	CSVFile string `envconfig:"CSV_FILE" default:"data/Superstore.csv" validate:"required"`
	// CacheDir holds dataset snapshots. Empty disables them.
	CacheDir      string        `envconfig:"CACHE_DIR" default:".cache"`
	LoadRetries   uint64        `envconfig:"CSV_LOAD_RETRIES" default:"3" validate:"max=20"`
	RetryInterval time.Duration `envconfig:"CSV_RETRY_INTERVAL" default:"500ms" validate:"gt=0"`
}

type FilterConfig struct {
	EmptySelectionMeansAll bool `envconfig:"EMPTY_SELECTION_MEANS_ALL" default:"true"`
}

type ExportConfig struct {
	CSVBOM bool `envconfig:"CSV_BOM" default:"false"`
}

type LoggerConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int      `envconfig:"RATE_LIMIT_RPS" default:"100" validate:"gt=0"`
	RateLimitBurst  int      `envconfig:"RATE_LIMIT_BURST" default:"10" validate:"gt=0"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1" validate:"dive,ip|cidr"`
}

type TracingConfig struct {
	// Enabled exports spans to stdout. When false spans go to the no-op provider.
	Enabled     bool   `envconfig:"ENABLED" default:"false"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"superstore-dashboard" validate:"required"`
}

// sections maps each config section to its environment prefix. The dataset
// settings keep their historical unprefixed names.
func (c *Config) sections() []struct {
	prefix string
	spec   any
} {
	return []struct {
		prefix string
		spec   any
	}{
		{"SERVER", &c.Server},
		{"", &c.Database},
		{"FILTER", &c.Filter},
		{"EXPORT", &c.Export},
		{"LOG", &c.Logger},
		{"SECURITY", &c.Security},
		{"TRACING", &c.Tracing},
	}
}

// Load reads the configuration from the environment, after applying a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	for _, s := range cfg.sections() {
		if err := envconfig.Process(s.prefix, s.spec); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) validate() error {
	if err := structValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
