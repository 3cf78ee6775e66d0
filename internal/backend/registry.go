package backend

import (
	"fmt"
	"time"

	"feedkeeper/internal/model"
	"feedkeeper/internal/network"
)

// Registry maps account backend kinds to their adapters. Adapters are
// stateless apart from session caches, so one instance serves every
// account of its kind.
type Registry struct {
	adapters map[model.BackendKind]Adapter
}

// NewRegistry wires the built-in adapters. Additional kinds can be added
// with Register before the engine starts.
func NewRegistry(clients *network.ClientFactory, timeout time.Duration) *Registry {
	r := &Registry{adapters: make(map[model.BackendKind]Adapter)}
	r.Register(model.BackendStandard, NewStandardAdapter(clients, timeout))
	r.Register(model.BackendCloudNews, NewCloudNewsAdapter(clients, timeout))
	r.Register(model.BackendTinyRSS, NewTinyRSSAdapter(clients, timeout))
	return r
}

func (r *Registry) Register(kind model.BackendKind, adapter Adapter) {
	r.adapters[kind] = adapter
}

// For returns the adapter serving the given kind.
func (r *Registry) For(kind model.BackendKind) (Adapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for backend %q", kind)
	}
	return adapter, nil
}
