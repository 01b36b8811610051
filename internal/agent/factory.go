package agent

import (
	"sort"
	"sync"
)

// Constructor builds a fresh agent.
type Constructor func() Agent

// Factory maps agent identifiers to constructors. It is populated at startup.
type Factory struct {
	mu      sync.RWMutex
	ctors   map[string]Constructor
	aliases map[string]string
}

func NewFactory() *Factory {
	return &Factory{
		ctors:   make(map[string]Constructor),
		aliases: make(map[string]string),
	}
}

// Register binds name to ctor.
func (f *Factory) Register(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[name] = ctor
}

// Alias makes alias resolve to target.
func (f *Factory) Alias(alias, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliases[alias] = target
}

// New builds the agent registered under name or one of its aliases.
func (f *Factory) New(name string) (Agent, error) {
	f.mu.RLock()
	if target, ok := f.aliases[name]; ok {
		name = target
	}
	ctor, ok := f.ctors[name]
	f.mu.RUnlock()
	if !ok {
		return nil, &UnknownAgentError{Name: name, Known: f.Names()}
	}
	return ctor(), nil
}

// Names returns the registered identifiers, sorted.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.ctors))
	for n := range f.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
