package pawtrail

import (
	"errors"
	"net/url"
	"time"
)

// Config groups all tunables of a session. Construct via [defaultConfig]
// through [New]; override with [Builder.WithConfig]. Config values are read
// at Build time and treated as immutable afterwards.
type Config struct {
	Pipeline PipelineConfig
	Refresh  RefreshConfig
	Toggle   ToggleConfig
	Events   EventsConfig
	Metrics  MetricsConfig
}

/*
====================================
PIPELINE CONFIG
====================================
*/

// PipelineConfig controls header injection on outbound requests.
type PipelineConfig struct {
	// AccessHeader carries the access token. Default "Authorization".
	AccessHeader string
	// AccessScheme prefixes the access token value. Default "Bearer".
	AccessScheme string
	// RefreshHeader carries the refresh token alongside the access token.
	// Default "X-Refresh-Token".
	RefreshHeader string
	// CorrelationHeader carries a per-request UUID for backend log
	// correlation. Empty disables injection. Default "X-Request-ID".
	CorrelationHeader string
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the token exchange.
type RefreshConfig struct {
	// URL is the refresh endpoint. Required unless a custom
	// [TokenExchanger] is installed.
	URL string
	// ExpiryLeeway widens pre-flight expiry checks: a token within leeway
	// of its exp claim is refreshed proactively instead of being spent on
	// a request that would race its own expiry.
	ExpiryLeeway time.Duration
}

/*
====================================
TOGGLE CONFIG
====================================
*/

// ToggleConfig controls the optimistic toggle verification loop.
type ToggleConfig struct {
	// BaseInterval is the delay before the first verification read; retry
	// delays grow as multiples of it to absorb read-after-write lag.
	BaseInterval time.Duration
	// MaxAttempts bounds consecutive verification reads before the
	// reconciler gives up and records a consistency warning.
	MaxAttempts int
	// VerifyTimeout bounds each individual verification read.
	VerifyTimeout time.Duration
}

/*
====================================
EVENTS / METRICS CONFIG
====================================
*/

// EventsConfig controls the asynchronous event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			AccessHeader:      "Authorization",
			AccessScheme:      "Bearer",
			RefreshHeader:     "X-Refresh-Token",
			CorrelationHeader: "X-Request-ID",
		},
		Refresh: RefreshConfig{
			ExpiryLeeway: 10 * time.Second,
		},
		Toggle: ToggleConfig{
			BaseInterval:  2 * time.Second,
			MaxAttempts:   3,
			VerifyTimeout: 10 * time.Second,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values the session cannot operate
// with. It does not check Refresh.URL — Build does, because a custom
// exchanger makes the URL optional.
func (c Config) Validate() error {
	if c.Pipeline.AccessHeader == "" {
		return errors.New("pipeline access header must not be empty")
	}
	if c.Refresh.ExpiryLeeway < 0 || c.Refresh.ExpiryLeeway > 2*time.Minute {
		return errors.New("invalid refresh expiry leeway")
	}
	if c.Refresh.URL != "" {
		if _, err := url.ParseRequestURI(c.Refresh.URL); err != nil {
			return errors.New("invalid refresh url")
		}
	}
	if c.Toggle.BaseInterval <= 0 {
		return errors.New("toggle base interval must be positive")
	}
	if c.Toggle.MaxAttempts <= 0 {
		return errors.New("toggle max attempts must be positive")
	}
	if c.Toggle.VerifyTimeout <= 0 {
		return errors.New("toggle verify timeout must be positive")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("events buffer size must be positive")
	}
	return nil
}
