// Package tool adapts the provider clients to the uniform tool contract
// and holds the static registry the dispatcher resolves sources against.
package tool

import (
	contractx "github.com/chainquery/chainquery/agent/contract"
)

const (
	statusActive      = "active"
	statusUnavailable = "unavailable"
)

// configured is implemented by adapters whose provider needs credentials.
type configured interface {
	Configured() bool
}

// Registry is a fixed source-to-tool mapping assembled at startup. There is
// no runtime discovery; adding a provider means registering one more
// adapter here.
type Registry struct {
	tools map[string]contractx.Tool
	order []string
}

func NewRegistry(tools ...contractx.Tool) *Registry {
	r := &Registry{
		tools: make(map[string]contractx.Tool, len(tools)),
		order: make([]string, 0, len(tools)),
	}
	for _, t := range tools {
		if t == nil {
			continue
		}
		name := t.Name()
		if _, dup := r.tools[name]; !dup {
			r.order = append(r.order, name)
		}
		r.tools[name] = t
	}
	return r
}

func (r *Registry) Lookup(source string) (contractx.Tool, bool) {
	t, ok := r.tools[source]
	return t, ok
}

// Sources lists registered source identifiers in registration order.
func (r *Registry) Sources() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Services reports per-provider availability for the health endpoint. A
// provider with no credential requirement is always active.
func (r *Registry) Services() map[string]string {
	out := make(map[string]string, len(r.order))
	for _, name := range r.order {
		status := statusActive
		if c, ok := r.tools[name].(configured); ok && !c.Configured() {
			status = statusUnavailable
		}
		out[name] = status
	}
	return out
}
