package redisstream

import (
	"fmt"
	"os"
	"time"
)

// Config for the Redis Streams source and sink.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// Source: the stream events are read from through a consumer group.
	Stream     string
	Group      string
	Consumer   string
	Block      time.Duration
	AutoCreate bool

	// Source: stream management
	AutoDeleteOnAck bool
	DeadLetter      string
	ClaimMinIdle    time.Duration

	// Sink: per-recipient streams are named Prefix:dc:node.
	Prefix string
	// MaxLen is the backlog at which a recipient stream rejects (0 = never).
	MaxLen int64

	// Codec encodes the recipients field ("json" or "msgpack").
	Codec string
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "xrelay"
	}

	return Config{
		Addr:       "127.0.0.1:6379",
		Stream:     "xrelay:outbox",
		Group:      "xrelay",
		Consumer:   fmt.Sprintf("xrelay-%s-%d", hostname, os.Getpid()),
		Block:      100 * time.Millisecond,
		AutoCreate: true,
		Prefix:     "xrelay:inbox",
		Codec:      "json",
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.Group == "" {
		return fmt.Errorf("config: group required")
	}
	if c.Consumer == "" {
		return fmt.Errorf("config: consumer required")
	}
	// BLOCK 0 waits forever on the server and would pin Read past cancellation.
	if c.Block <= 0 {
		return fmt.Errorf("config: block must be > 0, got %v", c.Block)
	}
	if c.ClaimMinIdle < 0 {
		return fmt.Errorf("config: claim_min_idle must be >= 0, got %v", c.ClaimMinIdle)
	}
	if c.Prefix == "" {
		return fmt.Errorf("config: prefix required")
	}
	if c.MaxLen < 0 {
		return fmt.Errorf("config: max_len must be >= 0, got %d", c.MaxLen)
	}
	if c.Codec != "json" && c.Codec != "msgpack" {
		return fmt.Errorf("config: unsupported codec %q", c.Codec)
	}
	return nil
}

// toMap converts Config to the generic map expected by the registry factories.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":               c.Addr,
		"username":           c.Username,
		"password":           c.Password,
		"db":                 c.DB,
		"tls":                c.TLS,
		"tls_server_name":    c.TLSServerName,
		"stream":             c.Stream,
		"group":              c.Group,
		"consumer":           c.Consumer,
		"block":              c.Block,
		"auto_create":        c.AutoCreate,
		"auto_delete_on_ack": c.AutoDeleteOnAck,
		"dead_letter":        c.DeadLetter,
		"claim_min_idle":     c.ClaimMinIdle,
		"prefix":             c.Prefix,
		"max_len":            c.MaxLen,
		"codec":              c.Codec,
	}
}

// ConfigFromMap safely converts generic map to Config with defaults.
// Durations may be given as time.Duration or as strings ("250ms").
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := optInt64(m["db"]); ok {
		c.DB = int(v)
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	if v, ok := m["stream"].(string); ok && v != "" {
		c.Stream = v
	}
	if v, ok := m["group"].(string); ok && v != "" {
		c.Group = v
	}
	if v, ok := m["consumer"].(string); ok && v != "" {
		c.Consumer = v
	}
	if v, ok := optDuration(m["block"]); ok && v > 0 {
		c.Block = v
	}
	if v, ok := m["auto_create"].(bool); ok {
		c.AutoCreate = v
	}
	if v, ok := m["auto_delete_on_ack"].(bool); ok {
		c.AutoDeleteOnAck = v
	}
	if v, ok := m["dead_letter"].(string); ok {
		c.DeadLetter = v
	}
	if v, ok := optDuration(m["claim_min_idle"]); ok {
		c.ClaimMinIdle = v
	}
	if v, ok := m["prefix"].(string); ok && v != "" {
		c.Prefix = v
	}
	if v, ok := optInt64(m["max_len"]); ok && v >= 0 {
		c.MaxLen = v
	}
	if v, ok := m["codec"].(string); ok && v != "" {
		c.Codec = v
	}

	return c
}
