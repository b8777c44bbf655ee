package tools

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var ErrToolNotFound = errors.New("tool not found")

// Registry manages the tools offered to a model. Implementations must be
// safe for concurrent use, registration from provider or plugin init paths
// may race with a running request reading the tool list.
type Registry interface {
	Register(def *Definition) error
	Get(name string) (*Definition, error)
	List() []*Definition
	Unregister(name string) error
	Has(name string) bool
	Count() int
}

// InMemoryRegistry is the default Registry. List returns tools sorted by
// name so provider payloads stay deterministic across runs.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

var _ Registry = (*InMemoryRegistry)(nil)

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		tools: make(map[string]*Definition),
	}
}

func (r *InMemoryRegistry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return errors.New("tool definition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
	return nil
}

func (r *InMemoryRegistry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tools[name]
	if !ok {
		return nil, errors.Wrapf(ErrToolNotFound, "tool %s", name)
	}
	return def, nil
}

func (r *InMemoryRegistry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *InMemoryRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return errors.Wrapf(ErrToolNotFound, "tool %s", name)
	}
	delete(r.tools, name)
	return nil
}

func (r *InMemoryRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

func (r *InMemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Clone returns an independent registry with the same tools, used to give a
// request a stable tool set while the live registry keeps changing.
func (r *InMemoryRegistry) Clone() *InMemoryRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cloned := NewInMemoryRegistry()
	for name, def := range r.tools {
		cloned.tools[name] = def
	}
	return cloned
}
