package corelens

import (
	"fmt"
	"sort"
	"strings"

	"github.com/richl9/drgn-tools/internal/model"
)

// Registry holds the available diagnostic modules by name.
type Registry struct {
	factories map[string]Factory
	synopses  map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		synopses:  make(map[string]string),
	}
}

// Register adds a module factory. The factory is invoked once to
// learn the module's name and synopsis; an invalid or duplicate name
// is an error.
func (r *Registry) Register(f Factory) error {
	probe := f()
	name := probe.Name()
	if err := model.ValidateName(name); err != nil {
		return fmt.Errorf("module name rejected: %w", err)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("module %q registered twice", name)
	}
	r.factories[name] = f
	r.synopses[name] = probe.Synopsis()
	return nil
}

// MustRegister is Register for wiring code, panicking on error.
// Registration failures are programming mistakes (a typo'd or
// colliding name), not runtime conditions.
func (r *Registry) MustRegister(factories ...Factory) *Registry {
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// New creates a fresh instance of the named module.
func (r *Registry) New(name string) (Module, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown module %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(), nil
}

// Has reports whether a module with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Synopsis returns the one-line description of a registered module.
func (r *Registry) Synopsis(name string) string {
	return r.synopses[name]
}
