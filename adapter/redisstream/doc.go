// Package redisstream provides a Redis Streams Source and Sink for xrelay.
//
// Adapter name: "redis-streams"
//
// The Source reads one entry at a time from a stream through a consumer
// group. Each entry carries the fields origin, data and recipients
// (recipients encoded with the configured codec). Entries are acknowledged
// as soon as they are decoded; malformed ones are moved to the dead-letter
// stream when one is configured and surface as a fault otherwise.
//
// The Sink appends each payload to the recipient's own stream,
// "<prefix>:<dc>:<node>". When max_len is set, a recipient whose stream
// already holds that many entries rejects the payload.
//
// Config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - stream: source stream (default "xrelay:outbox")
// - group: consumer group name (default "xrelay")
// - consumer: consumer name (default "xrelay-<host>-<pid>")
// - block: XREADGROUP BLOCK duration (default 100ms)
// - auto_create: create group/stream if missing (default true)
// - auto_delete_on_ack: XDEL after XACK (default false)
// - dead_letter: stream for malformed entries (optional)
// - claim_min_idle: reclaim entries left pending by dead consumers (optional)
// - prefix: recipient stream prefix (default "xrelay:inbox")
// - max_len: recipient backlog that triggers rejection (default 0, never)
// - codec: "json" or "msgpack" (default "json")
//
// Example builder usage:
//
//	d, _ := xrelay.NewDispatcherBuilder().
//	    WithSourceName(redisstream.AdapterName, map[string]any{
//	        "addr":   "localhost:6379",
//	        "stream": "billing:outbox",
//	        "block":  "250ms",
//	    }).
//	    WithSinkName(redisstream.AdapterName, map[string]any{
//	        "addr":    "localhost:6379",
//	        "max_len": 1000,
//	    }).
//	    Build()
package redisstream
