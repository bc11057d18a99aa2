package memory

import (
	"fmt"
	"time"

	"github.com/trickstertwo/xrelay"
)

const AdapterName = "memory"

func init() {
	if err := xrelay.RegisterSource(AdapterName, func(map[string]any) (xrelay.Source, error) {
		return NewSource(), nil
	}); err != nil {
		panic(fmt.Errorf("xrelay/memory: failed to register source: %w", err))
	}
	if err := xrelay.RegisterSink(AdapterName, func(cfg map[string]any) (xrelay.Sink, error) {
		return NewSink(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xrelay/memory: failed to register sink: %w", err))
	}
}

// Pair builds a Dispatcher over a fresh memory Source and Sink and returns all three.
func Pair(cfg Config, idleInterval time.Duration, opts ...xrelay.Option) (*xrelay.Dispatcher, *Source, *Sink, error) {
	src := NewSource()
	snk := NewSink(cfg)
	d, err := xrelay.New(idleInterval, src, snk, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, src, snk, nil
}
