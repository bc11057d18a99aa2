package redisstream

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 2 * time.Second

// ClientOptions maps the connection part of cfg onto go-redis options. The
// adapter dials with it; callers sharing a client with a Source or Sink can too.
func ClientOptions(cfg Config) *redis.Options {
	o := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     4,
		MinIdleConns: 1,
	}
	if cfg.TLS {
		o.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.TLSServerName,
		}
	}
	return o
}

// dial opens a client and proves it with PING so a bad address fails at
// construction rather than on the first Read or Send.
func dial(cfg Config) (*redis.Client, error) {
	c := redis.NewClient(ClientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redisstream: ping %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// fieldString reads a stream field; go-redis returns strings, other clients bytes.
func fieldString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func fieldBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	return nil
}

// optInt64 accepts the numeric shapes YAML, JSON and Go callers produce.
func optInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func optDuration(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		p, err := time.ParseDuration(d)
		return p, err == nil
	case int:
		return time.Duration(d), true
	case int64:
		return time.Duration(d), true
	case float64:
		return time.Duration(d), true
	}
	return 0, false
}
