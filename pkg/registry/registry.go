// Package registry maps configuration names to field plugin and sink
// factories. Plugin and sink packages register themselves in init; the
// runner resolves the names listed in a config.Config.
package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/logger"
	"github.com/ajitpratap0/onix/pkg/record"
)

// FieldFactory creates a field plugin instance.
type FieldFactory func() record.FieldPlugin

// SinkFactory creates a sink from its configuration. ctx bounds connection
// setup only.
type SinkFactory func(ctx context.Context, cfg config.SinkConfig) (record.Sink, error)

// Registry manages field plugin and sink registration.
type Registry struct {
	fields map[string]FieldFactory
	sinks  map[string]SinkFactory
	mu     sync.RWMutex
	logger *zap.Logger
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		fields: make(map[string]FieldFactory),
		sinks:  make(map[string]SinkFactory),
		logger: logger.Get().With(zap.String("component", "registry")),
	}
}

// RegisterField registers a field plugin factory under name.
func (r *Registry) RegisterField(name string, factory FieldFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.fields[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "field plugin %s already registered", name)
	}
	r.fields[name] = factory
	r.logger.Debug("field plugin registered", zap.String("name", name))
	return nil
}

// RegisterSink registers a sink factory under a sink type.
func (r *Registry) RegisterSink(sinkType string, factory SinkFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[sinkType]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "sink type %s already registered", sinkType)
	}
	r.sinks[sinkType] = factory
	r.logger.Debug("sink type registered", zap.String("type", sinkType))
	return nil
}

// CreateField creates the field plugin registered under name.
func (r *Registry) CreateField(name string) (record.FieldPlugin, error) {
	r.mu.RLock()
	factory, exists := r.fields[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "field plugin %s not found", name).
			WithDetail("plugin", name)
	}
	return factory(), nil
}

// CreateSink creates a sink of cfg.Type.
func (r *Registry) CreateSink(ctx context.Context, cfg config.SinkConfig) (record.Sink, error) {
	r.mu.RLock()
	factory, exists := r.sinks[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "sink type %s not found", cfg.Type).
			WithDetail("sink", cfg.Name)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Type
	}

	sink, err := factory(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create sink "+cfg.Name).
			WithDetail("sink", cfg.Name)
	}
	return sink, nil
}

// ListFields returns the registered field plugin names, sorted.
func (r *Registry) ListFields() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListSinks returns the registered sink types, sorted.
func (r *Registry) ListSinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.sinks))
	for t := range r.sinks {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// HasField checks if a field plugin is registered.
func (r *Registry) HasField(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.fields[name]
	return exists
}

// HasSink checks if a sink type is registered.
func (r *Registry) HasSink(sinkType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sinks[sinkType]
	return exists
}

// RegisterField registers a field plugin factory on the global registry.
func RegisterField(name string, factory FieldFactory) error {
	return globalRegistry.RegisterField(name, factory)
}

// RegisterSink registers a sink factory on the global registry.
func RegisterSink(sinkType string, factory SinkFactory) error {
	return globalRegistry.RegisterSink(sinkType, factory)
}

// CreateField creates a field plugin from the global registry.
func CreateField(name string) (record.FieldPlugin, error) {
	return globalRegistry.CreateField(name)
}

// CreateSink creates a sink from the global registry.
func CreateSink(ctx context.Context, cfg config.SinkConfig) (record.Sink, error) {
	return globalRegistry.CreateSink(ctx, cfg)
}

// ListFields lists the field plugins of the global registry.
func ListFields() []string { return globalRegistry.ListFields() }

// ListSinks lists the sink types of the global registry.
func ListSinks() []string { return globalRegistry.ListSinks() }

// GetRegistry returns the global registry.
func GetRegistry() *Registry { return globalRegistry }
