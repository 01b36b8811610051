package tool

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// UnknownToolError is returned when a name is not registered.
type UnknownToolError struct {
	Name       string
	Registered []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (registered: %s)", e.Name, strings.Join(e.Registered, ", "))
}

// Descriptor summarises one tool for prompt construction.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Registry manages available tools in registration order.
// Registering an existing name replaces the tool but keeps its position.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry, replacing any tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		log.Printf("[tool] %s registered twice, last registration wins", name)
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Resolve returns a tool by name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name, Registered: append([]string(nil), r.order...)}
	}
	return t, nil
}

// Invoke resolves name and executes it with args. Tool errors are returned unmasked.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (string, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	if args == nil {
		args = Args{}
	}
	out, err := t.Execute(ctx, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return out, nil
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns all registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Describe returns descriptors in registration order.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		params := t.Parameters()
		if params == nil {
			params = []Parameter{}
		}
		defs = append(defs, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
