package driver

import (
	"context"
	"sync"

	"github.com/dimdasci/agent-primitives/pkg/errmodel"
)

// Source yields a constructed Driver for a configured name. The agent loop
// and the fallback coordinator depend on this interface, not on Pool.
type Source interface {
	Get(ctx context.Context, name string) (Driver, error)
}

// Pool constructs drivers lazily and memoizes them per configured name, so
// credential and client setup happens once per run. Construction is
// synchronized: two concurrent first uses of the same name cannot
// double-construct.
type Pool struct {
	cfgs map[string]Config

	mu    sync.Mutex
	built map[string]Driver
}

// NewPool creates a pool over named driver configs. Keys are lookup names;
// each config's Provider field selects the registered factory, so two names
// may share a provider with different models or credentials.
func NewPool(cfgs map[string]Config) *Pool {
	copied := make(map[string]Config, len(cfgs))
	for k, v := range cfgs {
		copied[k] = v
	}
	return &Pool{cfgs: copied, built: map[string]Driver{}}
}

// Get returns the memoized driver for name, constructing it on first use.
// An unknown name or provider fails with a config error before any provider
// call is attempted.
func (p *Pool) Get(ctx context.Context, name string) (Driver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d, ok := p.built[name]; ok {
		return d, nil
	}
	cfg, ok := p.cfgs[name]
	if !ok {
		return nil, errmodel.Config("unknown_provider",
			"no configuration for provider "+name, map[string]any{"provider": name})
	}
	provider := cfg.Provider
	if provider == "" {
		provider = name
	}
	f, ok := Resolve(provider)
	if !ok {
		return nil, errmodel.Config("unknown_provider",
			"provider "+provider+" is not registered",
			map[string]any{"provider": provider, "registered": Registered()})
	}
	d, err := f(ctx, cfg)
	if err != nil {
		return nil, errmodel.Config("driver_init",
			"constructing driver for "+name+": "+err.Error(), map[string]any{"provider": provider})
	}
	p.built[name] = d
	return d, nil
}
