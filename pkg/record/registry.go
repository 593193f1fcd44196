package record

import (
	"github.com/ajitpratap0/onix/pkg/errors"
)

type fieldEntry struct {
	namespace string
	plugin    FieldPlugin
}

// Fields is an ordered set of (namespace, plugin) pairs.
type Fields struct {
	entries []fieldEntry
	index   map[string]int
}

// NewFields returns an empty registry.
func NewFields() *Fields {
	return &Fields{index: make(map[string]int)}
}

// Register appends plugin under namespace. Namespaces are unique.
func (f *Fields) Register(namespace string, plugin FieldPlugin) error {
	if namespace == "" {
		return errors.New(errors.ErrorTypeConfig, "field namespace is empty")
	}
	if plugin == nil {
		return errors.Newf(errors.ErrorTypeConfig, "field plugin %s is nil", namespace).
			WithDetail("namespace", namespace)
	}
	if _, exists := f.index[namespace]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "field namespace %s already registered", namespace).
			WithDetail("namespace", namespace)
	}
	f.index[namespace] = len(f.entries)
	f.entries = append(f.entries, fieldEntry{namespace: namespace, plugin: plugin})
	return nil
}

// Get returns the plugin registered under namespace.
func (f *Fields) Get(namespace string) (FieldPlugin, bool) {
	i, ok := f.index[namespace]
	if !ok {
		return nil, false
	}
	return f.entries[i].plugin, true
}

// Namespaces returns the registered namespaces in order.
func (f *Fields) Namespaces() []string {
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.namespace
	}
	return out
}

// Len returns the number of registered plugins.
func (f *Fields) Len() int { return len(f.entries) }

// Sinks is an ordered set of uniquely named sinks.
type Sinks struct {
	sinks []Sink
	names map[string]struct{}
}

// NewSinks returns an empty registry.
func NewSinks() *Sinks {
	return &Sinks{names: make(map[string]struct{})}
}

// Add appends s. Sink names are unique.
func (s *Sinks) Add(sink Sink) error {
	if sink == nil {
		return errors.New(errors.ErrorTypeConfig, "sink is nil")
	}
	name := sink.Name()
	if name == "" {
		return errors.New(errors.ErrorTypeConfig, "sink name is empty")
	}
	if _, exists := s.names[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "sink %s already registered", name).
			WithDetail("sink", name)
	}
	s.names[name] = struct{}{}
	s.sinks = append(s.sinks, sink)
	return nil
}

// All returns the sinks in registration order.
func (s *Sinks) All() []Sink {
	out := make([]Sink, len(s.sinks))
	copy(out, s.sinks)
	return out
}

// Names returns the sink names in registration order.
func (s *Sinks) Names() []string {
	out := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		out[i] = sink.Name()
	}
	return out
}

// Len returns the number of registered sinks.
func (s *Sinks) Len() int { return len(s.sinks) }
