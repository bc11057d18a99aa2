package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the xrelay process configuration.
type Config struct {
	Log        LogConfig        `json:"log"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Source     AdapterConfig    `json:"source"`
	Sink       SinkConfig       `json:"sink"`
}

type LogConfig struct {
	Level   string `json:"level"` // debug|info|warn|error
	Console bool   `json:"console"`
	Caller  bool   `json:"caller"`
	// AsyncBuffer > 0 moves activity logging off the dispatch loop.
	AsyncBuffer int `json:"async_buffer"`
}

type DispatcherConfig struct {
	IdleInterval string `json:"idle_interval"`
}

// AdapterConfig names a registered adapter and passes Options to its factory.
type AdapterConfig struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options"`
}

// SinkConfig embeds AdapterConfig, so name and options sit next to the middleware keys.
type SinkConfig struct {
	AdapterConfig
	Timeout    string        `json:"timeout"`
	Retry      RetryConfig   `json:"retry"`
	Breaker    BreakerConfig `json:"breaker"`
	RatePerSec float64       `json:"rate_per_sec"`
	Burst      int           `json:"burst"`
}

type RetryConfig struct {
	MaxAttempts int    `json:"max_attempts"`
	Backoff     string `json:"backoff"`
	Jitter      string `json:"jitter"`
}

// BreakerConfig enables per-recipient circuit breaking when ConsecutiveFailures > 0.
type BreakerConfig struct {
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	OpenTimeout         string `json:"open_timeout"`
}

const DefaultIdleInterval = time.Second

// Defaults returns a config that relays between in-memory adapters.
func Defaults() Config {
	return Config{
		Log:        LogConfig{Level: "info"},
		Dispatcher: DispatcherConfig{IdleInterval: DefaultIdleInterval.String()},
		Source:     AdapterConfig{Name: "memory"},
		Sink:       SinkConfig{AdapterConfig: AdapterConfig{Name: "memory"}},
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if c.Log.AsyncBuffer < 0 {
		errs = append(errs, errors.New("log.async_buffer: must be >= 0"))
	}
	if _, err := ParseDurationField("dispatcher.idle_interval", c.Dispatcher.IdleInterval); err != nil {
		errs = append(errs, err)
	}
	if c.Source.Name == "" {
		errs = append(errs, errors.New("source.name: required"))
	}
	if c.Sink.Name == "" {
		errs = append(errs, errors.New("sink.name: required"))
	}
	if _, err := ParseDurationField("sink.timeout", c.Sink.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("sink.retry.backoff", c.Sink.Retry.Backoff); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("sink.retry.jitter", c.Sink.Retry.Jitter); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("sink.breaker.open_timeout", c.Sink.Breaker.OpenTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.Sink.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("sink.retry.max_attempts: must be >= 0"))
	}
	if c.Sink.RatePerSec < 0 {
		errs = append(errs, errors.New("sink.rate_per_sec: must be >= 0"))
	}
	if c.Sink.Burst < 0 {
		errs = append(errs, errors.New("sink.burst: must be >= 0"))
	}
	return errors.Join(errs...)
}

// IdleInterval returns the parsed dispatcher interval. An empty value means the
// default; "0s" is kept and disables waiting.
func (c *Config) IdleInterval() time.Duration {
	if c.Dispatcher.IdleInterval == "" {
		return DefaultIdleInterval
	}
	d, _ := ParseDurationField("dispatcher.idle_interval", c.Dispatcher.IdleInterval)
	return d
}

func (s SinkConfig) TimeoutDuration() time.Duration {
	d, _ := ParseDurationField("sink.timeout", s.Timeout)
	return d
}

func (r RetryConfig) BackoffDuration() time.Duration {
	d, _ := ParseDurationOrDefault("sink.retry.backoff", r.Backoff, 100*time.Millisecond)
	return d
}

func (r RetryConfig) JitterDuration() time.Duration {
	d, _ := ParseDurationField("sink.retry.jitter", r.Jitter)
	return d
}

func (b BreakerConfig) OpenTimeoutDuration() time.Duration {
	d, _ := ParseDurationField("sink.breaker.open_timeout", b.OpenTimeout)
	return d
}
