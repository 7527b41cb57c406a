package pawtrail

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// fileConfig is the flat, tag-annotated mirror of [Config] used for loading
// from a YAML file and/or environment variables. Omitted values fall back
// to the programmatic defaults.
type fileConfig struct {
	AccessHeader      string `yaml:"access_header" env:"PAWTRAIL_ACCESS_HEADER" env-default:"Authorization"`
	AccessScheme      string `yaml:"access_scheme" env:"PAWTRAIL_ACCESS_SCHEME" env-default:"Bearer"`
	RefreshHeader     string `yaml:"refresh_header" env:"PAWTRAIL_REFRESH_HEADER" env-default:"X-Refresh-Token"`
	CorrelationHeader string `yaml:"correlation_header" env:"PAWTRAIL_CORRELATION_HEADER" env-default:"X-Request-ID"`

	RefreshURL   string        `yaml:"refresh_url" env:"PAWTRAIL_REFRESH_URL"`
	ExpiryLeeway time.Duration `yaml:"expiry_leeway" env:"PAWTRAIL_EXPIRY_LEEWAY" env-default:"10s"`

	ToggleBaseInterval  time.Duration `yaml:"toggle_base_interval" env:"PAWTRAIL_TOGGLE_BASE_INTERVAL" env-default:"2s"`
	ToggleMaxAttempts   int           `yaml:"toggle_max_attempts" env:"PAWTRAIL_TOGGLE_MAX_ATTEMPTS" env-default:"3"`
	ToggleVerifyTimeout time.Duration `yaml:"toggle_verify_timeout" env:"PAWTRAIL_TOGGLE_VERIFY_TIMEOUT" env-default:"10s"`

	EventsEnabled    bool `yaml:"events_enabled" env:"PAWTRAIL_EVENTS_ENABLED" env-default:"true"`
	EventsBufferSize int  `yaml:"events_buffer_size" env:"PAWTRAIL_EVENTS_BUFFER_SIZE" env-default:"256"`

	MetricsEnabled bool `yaml:"metrics_enabled" env:"PAWTRAIL_METRICS_ENABLED" env-default:"true"`
}

// LoadConfig reads configuration from the YAML file at path, with
// environment variables taking precedence for set values. An empty path
// reads the environment only.
func LoadConfig(path string) (Config, error) {
	const op = "pawtrail.LoadConfig"

	var fc fileConfig
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("%s: config file %q: %w", op, path, err)
		}
		if err := cleanenv.ReadConfig(path, &fc); err != nil {
			return Config{}, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&fc); err != nil {
			return Config{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	cfg := Config{
		Pipeline: PipelineConfig{
			AccessHeader:      fc.AccessHeader,
			AccessScheme:      fc.AccessScheme,
			RefreshHeader:     fc.RefreshHeader,
			CorrelationHeader: fc.CorrelationHeader,
		},
		Refresh: RefreshConfig{
			URL:          fc.RefreshURL,
			ExpiryLeeway: fc.ExpiryLeeway,
		},
		Toggle: ToggleConfig{
			BaseInterval:  fc.ToggleBaseInterval,
			MaxAttempts:   fc.ToggleMaxAttempts,
			VerifyTimeout: fc.ToggleVerifyTimeout,
		},
		Events: EventsConfig{
			Enabled:    fc.EventsEnabled,
			BufferSize: fc.EventsBufferSize,
		},
		Metrics: MetricsConfig{
			Enabled: fc.MetricsEnabled,
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

// ConfigFromEnv reads configuration from environment variables only.
func ConfigFromEnv() (Config, error) {
	return LoadConfig("")
}
