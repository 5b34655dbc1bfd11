package commands

import (
	"context"
	"sync"

	"github.com/doeshing/hookgate/internal/app"
	"github.com/doeshing/hookgate/internal/infrastructure/config"
)

// Runtime builds the container on first use, after cobra has parsed the
// flags bound into the config loader.
type Runtime struct {
	Options app.Options
	Loader  *config.Loader

	mu        sync.Mutex
	container *app.Container
}

// NewRuntime creates a runtime around loader.
func NewRuntime(loader *config.Loader, opts app.Options) *Runtime {
	return &Runtime{Options: opts, Loader: loader}
}

// Container returns the shared container, building it if needed.
func (r *Runtime) Container(ctx context.Context) (*app.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.container != nil {
		return r.container, nil
	}
	c, err := app.BuildContainer(ctx, r.Loader, r.Options)
	if err != nil {
		return nil, err
	}
	r.container = c
	return c, nil
}

// Close releases the container if one was built.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.container == nil {
		return nil
	}
	err := r.container.Close()
	r.container = nil
	return err
}
