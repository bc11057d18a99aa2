package xrelay

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// SourceFactory constructs sources from a config blob.
type SourceFactory func(cfg map[string]any) (Source, error)

// SinkFactory constructs sinks from a config blob.
type SinkFactory func(cfg map[string]any) (Sink, error)

// CodecFactory constructs codecs via Factory pattern.
type CodecFactory func() Codec

var (
	sourceRegistryMu sync.RWMutex
	sourceRegistry   = map[string]SourceFactory{}

	sinkRegistryMu sync.RWMutex
	sinkRegistry   = map[string]SinkFactory{}

	codecRegistryMu sync.RWMutex
	codecRegistry   = map[string]CodecFactory{
		"json":    func() Codec { return JSONCodec{} },
		"msgpack": func() Codec { return MsgpackCodec{} },
	}
)

// RegisterSource registers a source adapter.
func RegisterSource(name string, factory SourceFactory) error {
	if name == "" {
		return errors.New("source name must not be empty")
	}
	if factory == nil {
		return errors.New("source factory must not be nil")
	}
	sourceRegistryMu.Lock()
	sourceRegistry[name] = factory
	sourceRegistryMu.Unlock()
	return nil
}

// NewSource constructs a source by name with config.
func NewSource(name string, cfg map[string]any) (Source, error) {
	sourceRegistryMu.RLock()
	f, ok := sourceRegistry[name]
	sourceRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownSource{name: name}
	}
	return f(cfg)
}

// RegisterSink registers a sink adapter.
func RegisterSink(name string, factory SinkFactory) error {
	if name == "" {
		return errors.New("sink name must not be empty")
	}
	if factory == nil {
		return errors.New("sink factory must not be nil")
	}
	sinkRegistryMu.Lock()
	sinkRegistry[name] = factory
	sinkRegistryMu.Unlock()
	return nil
}

// NewSink constructs a sink by name with config.
func NewSink(name string, cfg map[string]any) (Sink, error) {
	sinkRegistryMu.RLock()
	f, ok := sinkRegistry[name]
	sinkRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownSink{name: name}
	}
	return f(cfg)
}

// Sources lists registered source names, sorted.
func Sources() []string {
	sourceRegistryMu.RLock()
	defer sourceRegistryMu.RUnlock()
	return sortedKeys(sourceRegistry)
}

// Sinks lists registered sink names, sorted.
func Sinks() []string {
	sinkRegistryMu.RLock()
	defer sinkRegistryMu.RUnlock()
	return sortedKeys(sinkRegistry)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RegisterCodec registers a codec factory by name.
func RegisterCodec(name string, factory CodecFactory) error {
	if name == "" {
		return errors.New("codec name must not be empty")
	}
	if factory == nil {
		return errors.New("codec factory must not be nil")
	}
	codecRegistryMu.Lock()
	codecRegistry[name] = factory
	codecRegistryMu.Unlock()
	return nil
}

// NewCodec constructs a codec by name or returns an error.
func NewCodec(name string) (Codec, error) {
	codecRegistryMu.RLock()
	f, ok := codecRegistry[name]
	codecRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec %q not registered", name)
	}
	return f(), nil
}
