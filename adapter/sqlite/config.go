package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config for the SQLite outbox source.
type Config struct {
	Path        string
	BusyTimeout time.Duration
	Codec       string
	// Retention removes dispatched rows older than this (0 keeps them forever).
	Retention time.Duration
}

func Defaults() Config {
	return Config{
		Path:        "xrelay-outbox.db",
		BusyTimeout: 5 * time.Second,
		Codec:       "json",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.New("sqlite path is required")
	}
	if c.BusyTimeout < 0 || c.Retention < 0 {
		return errors.New("sqlite durations must not be negative")
	}
	if c.Codec != "json" && c.Codec != "msgpack" {
		return fmt.Errorf("sqlite: unsupported codec %q", c.Codec)
	}
	return nil
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"path":         c.Path,
		"busy_timeout": c.BusyTimeout,
		"codec":        c.Codec,
		"retention":    c.Retention,
	}
}

func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["path"].(string); ok && v != "" {
		c.Path = v
	}
	if v, ok := m["codec"].(string); ok && v != "" {
		c.Codec = v
	}
	if v, ok := durationOf(m["busy_timeout"]); ok {
		c.BusyTimeout = v
	}
	if v, ok := durationOf(m["retention"]); ok {
		c.Retention = v
	}
	return c
}

func durationOf(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		p, err := time.ParseDuration(d)
		return p, err == nil
	}
	return 0, false
}
