package memory

import "time"

// Config controls memory adapter behavior.
type Config struct {
	// Capacity is how many payloads one address accepts before it starts
	// rejecting (default: 0 = unlimited). Drain resets the count.
	Capacity int
	// Latency is an artificial delay applied to every Send (default: 0).
	Latency time.Duration
	// AssignIDs instructs the sink to assign an ID to every recorded delivery (default: true).
	AssignIDs bool
}

// Defaults returns the configuration used when a key is absent.
func Defaults() Config {
	return Config{AssignIDs: true}
}

func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}

	getBool := func(k string, d bool) bool {
		if v, ok := cfg[k].(bool); ok {
			return v
		}
		return d
	}

	getDur := func(k string, d time.Duration) time.Duration {
		switch v := cfg[k].(type) {
		case time.Duration:
			return v
		case string:
			if p, err := time.ParseDuration(v); err == nil {
				return p
			}
		case float64:
			return time.Duration(v)
		}
		return d
	}

	def := Defaults()
	return Config{
		Capacity:  maxInt(0, getInt("capacity", def.Capacity)),
		Latency:   getDur("latency", def.Latency),
		AssignIDs: getBool("assign_ids", def.AssignIDs),
	}
}

// toMap converts Config to the generic map expected by the sink factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"capacity":   c.Capacity,
		"latency":    c.Latency,
		"assign_ids": c.AssignIDs,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
