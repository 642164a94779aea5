package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Handler executes one capability with arguments that already match its schema.
type Handler func(ctx context.Context, input json.RawMessage) (interface{}, error)

// Descriptor is the static metadata published for a capability.
type Descriptor struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description"`
	Schema      Schema          `json:"inputSchema"`
	Annotations map[string]bool `json:"annotations,omitempty"`
}

// Capability pairs a descriptor with the handler that serves it.
type Capability struct {
	Descriptor Descriptor
	Handler    Handler
}

type entry struct {
	descriptor Descriptor
	schema     *compiledSchema
	handler    Handler
}

// Registry is the fixed set of capabilities. It is built once and never mutated,
// so lookups need no locking.
type Registry struct {
	order   []string
	entries map[string]*entry
}

func NewRegistry(caps ...Capability) (*Registry, error) {
	if len(caps) == 0 {
		return nil, fmt.Errorf("registry needs at least one capability")
	}

	r := &Registry{
		order:   make([]string, 0, len(caps)),
		entries: make(map[string]*entry, len(caps)),
	}

	for _, c := range caps {
		name := c.Descriptor.Name
		if name == "" {
			return nil, fmt.Errorf("capability name cannot be empty")
		}
		if _, exists := r.entries[name]; exists {
			return nil, fmt.Errorf("capability already registered: %s", name)
		}
		if c.Handler == nil {
			return nil, fmt.Errorf("capability %s has no handler", name)
		}

		schema, err := compileSchema(name, c.Descriptor.Schema)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", name, err)
		}

		r.entries[name] = &entry{
			descriptor: cloneDescriptor(c.Descriptor),
			schema:     schema,
			handler:    c.Handler,
		}
		r.order = append(r.order, name)
	}

	return r, nil
}

// List returns the descriptors in declaration order. The result is a copy.
func (r *Registry) List() []Descriptor {
	result := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, cloneDescriptor(r.entries[name].descriptor))
	}
	return result
}

func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return cloneDescriptor(e.descriptor), true
}

func (r *Registry) lookup(name string) (*entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

func cloneDescriptor(d Descriptor) Descriptor {
	d.Schema = Schema{Params: slices.Clone(d.Schema.Params)}
	if d.Annotations != nil {
		d.Annotations = maps.Clone(d.Annotations)
	}
	return d
}
