package natsjs

import (
	"fmt"

	"github.com/trickstertwo/xrelay"
)

const AdapterName = "nats"

func init() {
	if err := xrelay.RegisterSource(AdapterName, func(cfg map[string]any) (xrelay.Source, error) {
		return NewSource(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xrelay: failed to register source %q: %w", AdapterName, err))
	}
	if err := xrelay.RegisterSink(AdapterName, func(cfg map[string]any) (xrelay.Sink, error) {
		return NewSink(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xrelay: failed to register sink %q: %w", AdapterName, err))
	}
}

// Builder returns a DispatcherBuilder with cfg wired as both source and sink.
func Builder(cfg Config) *xrelay.DispatcherBuilder {
	m := cfg.toMap()
	return xrelay.NewDispatcherBuilder().
		WithSourceName(AdapterName, m).
		WithSinkName(AdapterName, m)
}
