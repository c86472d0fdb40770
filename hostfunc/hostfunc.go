package hostfunc

import (
	"context"
	"sort"
	"sync"

	"github.com/qbradley/hyperlight/call"
)

// Func is a host function callable from the guest. Arguments arrive
// already verified against the registered parameter types.
type Func func(ctx context.Context, args []call.Value) (call.Value, error)

// Definition binds a host function to its typed signature.
type Definition struct {
	Name   string
	Params []call.Type
	Return call.Type
	Fn     Func
}

// Registry holds the host functions a sandbox exposes to its guest.
// Registering the same name again overwrites the earlier definition.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Definition)}
}

// Register adds fn under name with the given parameter and return types.
func (r *Registry) Register(name string, params []call.Type, ret call.Type, fn Func) {
	r.mu.Lock()
	r.funcs[name] = Definition{Name: name, Params: params, Return: ret, Fn: fn}
	r.mu.Unlock()
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	def, ok := r.funcs[name]
	r.mu.RUnlock()
	return def, ok
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Restrict returns a new registry holding only the named functions.
// Names not present are skipped. Profiles use this to narrow a full
// registry down to an allowlist.
func (r *Registry) Restrict(names ...string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for _, name := range names {
		if def, ok := r.funcs[name]; ok {
			out.funcs[name] = def
		}
	}
	return out
}
