package natsjs

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Config for the NATS JetStream source and request/reply sink.
type Config struct {
	URL  string
	Name string

	// Source: events are pulled from Subject through a durable consumer on Stream.
	Stream     string
	Subject    string
	Durable    string
	FetchWait  time.Duration
	AutoCreate bool
	Storage    string // "file" or "memory"

	// Sink: recipients answer requests on Prefix.<dc>.<node>.
	Prefix         string
	RequestTimeout time.Duration

	Codec string
}

func Defaults() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "xrelay",
		Stream:         "XRELAY_OUTBOX",
		Subject:        "xrelay.outbox",
		Durable:        "xrelay",
		FetchWait:      100 * time.Millisecond,
		AutoCreate:     true,
		Storage:        "file",
		Prefix:         "xrelay.inbox",
		RequestTimeout: 2 * time.Second,
		Codec:          "json",
	}
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("config: url required")
	}
	if c.Stream == "" || c.Subject == "" || c.Durable == "" {
		return fmt.Errorf("config: stream, subject and durable required")
	}
	if c.FetchWait <= 0 {
		return fmt.Errorf("config: fetch_wait must be > 0, got %v", c.FetchWait)
	}
	if c.Storage != "file" && c.Storage != "memory" {
		return fmt.Errorf("config: unsupported storage %q", c.Storage)
	}
	if c.Prefix == "" || strings.ContainsAny(c.Prefix, " *>") {
		return fmt.Errorf("config: invalid prefix %q", c.Prefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be > 0, got %v", c.RequestTimeout)
	}
	if c.Codec != "json" && c.Codec != "msgpack" {
		return fmt.Errorf("config: unsupported codec %q", c.Codec)
	}
	return nil
}

func (c Config) storageType() nats.StorageType {
	if c.Storage == "memory" {
		return nats.MemoryStorage
	}
	return nats.FileStorage
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"url":             c.URL,
		"name":            c.Name,
		"stream":          c.Stream,
		"subject":         c.Subject,
		"durable":         c.Durable,
		"fetch_wait":      c.FetchWait,
		"auto_create":     c.AutoCreate,
		"storage":         c.Storage,
		"prefix":          c.Prefix,
		"request_timeout": c.RequestTimeout,
		"codec":           c.Codec,
	}
}

func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	str := func(k string, dst *string) {
		if v, ok := m[k].(string); ok && v != "" {
			*dst = v
		}
	}
	dur := func(k string, dst *time.Duration) {
		switch v := m[k].(type) {
		case time.Duration:
			if v > 0 {
				*dst = v
			}
		case string:
			if p, err := time.ParseDuration(v); err == nil && p > 0 {
				*dst = p
			}
		}
	}

	str("url", &c.URL)
	str("name", &c.Name)
	str("stream", &c.Stream)
	str("subject", &c.Subject)
	str("durable", &c.Durable)
	dur("fetch_wait", &c.FetchWait)
	if v, ok := m["auto_create"].(bool); ok {
		c.AutoCreate = v
	}
	str("storage", &c.Storage)
	str("prefix", &c.Prefix)
	dur("request_timeout", &c.RequestTimeout)
	str("codec", &c.Codec)
	return c
}

func connect(cfg Config) (*nats.Conn, error) {
	return nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
}
