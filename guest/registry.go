package guest

import (
	"context"
	"sort"

	"github.com/qbradley/hyperlight/call"
)

// Func is the body of a registered guest function.
type Func func(ctx context.Context, params []call.Value) (call.Value, error)

// Definition describes one callable guest function: its name, parameter
// types, return type, and body. The stored Go func stands in for the raw
// callable address the registry would otherwise hold.
type Definition struct {
	Name   string
	Params []call.Type
	Return call.Type
	Fn     Func
}

// Registry maps function names to definitions. It is populated during
// guest initialization, before the dispatch entry point is reachable, and
// is read-only afterward; it provides no synchronization of its own, so
// callers must guarantee that ordering externally.
type Registry struct {
	funcs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Definition)}
}

// Register inserts a definition, overwriting any prior entry with the
// same name. Last registration wins; no duplicate-name error is raised.
func (r *Registry) Register(def Definition) {
	r.funcs[def.Name] = def
}

// Lookup is a pure read. There is no removal operation.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.funcs[name]
	return def, ok
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
