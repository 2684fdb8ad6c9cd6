package ability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SchemaMismatchError reports a registration where the handler's accepted
// argument names do not match the declared parameter names.
type SchemaMismatchError struct {
	Ability  string
	Declared []string
	Accepted []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("ability %q: declared parameters [%s] do not match handler arguments [%s]",
		e.Ability, strings.Join(e.Declared, ", "), strings.Join(e.Accepted, ", "))
}

// Registry holds the abilities available to one agent. Registration checks
// the handler against the declared schema so mismatches surface at setup
// time, not mid-conversation.
type Registry struct {
	mu        sync.RWMutex
	abilities map[string]*Ability
	order     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{abilities: make(map[string]*Ability)}
}

// Register adds an ability. It fails if the name is taken or if the
// handler's accepted argument names differ from the declared parameter
// names as sets.
func (r *Registry) Register(a *Ability) error {
	if a.Name == "" {
		return fmt.Errorf("ability name must not be empty")
	}
	if a.Handler == nil {
		return fmt.Errorf("ability %q: handler must not be nil", a.Name)
	}

	declared := make([]string, 0, len(a.Parameters))
	for _, p := range a.Parameters {
		declared = append(declared, p.Name)
	}
	if !sameNameSet(declared, a.Accepts) {
		sort.Strings(declared)
		accepted := append([]string(nil), a.Accepts...)
		sort.Strings(accepted)
		return &SchemaMismatchError{Ability: a.Name, Declared: declared, Accepted: accepted}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.abilities[a.Name]; exists {
		return fmt.Errorf("ability %q is already registered", a.Name)
	}
	r.abilities[a.Name] = a
	r.order = append(r.order, a.Name)
	return nil
}

// MustRegister registers each ability and panics on failure. Intended for
// static setup where a mismatch is a programming error.
func (r *Registry) MustRegister(abilities ...*Ability) {
	for _, a := range abilities {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Get looks up an ability by name.
func (r *Registry) Get(name string) (*Ability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.abilities[name]
	return a, ok
}

// Specs returns the function specs in registration order, for handing to
// the model gateway.
func (r *Registry) Specs() []FunctionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FunctionSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.abilities[name].Spec())
	}
	return out
}

// Names returns the registered ability names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func sameNameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	if len(set) != len(a) {
		return false
	}
	for _, n := range b {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}
