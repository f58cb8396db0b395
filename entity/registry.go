package entity

import (
	"slices"
	"sync"

	"github.com/kbukum/persist/errors"
)

// Registry maps class names to Classes. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry creates a Registry pre-populated with classes.
func NewRegistry(classes ...*Class) (*Registry, error) {
	r := &Registry{classes: make(map[string]*Class)}
	for _, c := range classes {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. Registering a name twice fails with ALREADY_EXISTS.
func (r *Registry) Register(c *Class) error {
	if !c.IsEntity() {
		return errors.InvalidArgumentf("%s is not an entity class", c.describe())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.classes == nil {
		r.classes = make(map[string]*Class)
	}
	if _, exists := r.classes[c.name]; exists {
		return errors.AlreadyExists("class", c.name)
	}
	r.classes[c.name] = c
	return nil
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	if !ok {
		return nil, errors.InvalidArgumentf("unknown entity class %q", name)
	}
	return c, nil
}

// Names returns the registered class names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
