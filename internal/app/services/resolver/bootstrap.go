package resolver

import (
	"context"
	"sync"

	"github.com/cartrewards/service_layer/internal/app/system"
	"github.com/cartrewards/service_layer/pkg/logger"
)

var _ system.Service = (*Bootstrapper)(nil)

// Bootstrapper resolves the configured store in the background when the
// process starts, so the HTTP surface can come up while resolution is
// still loading.
type Bootstrapper struct {
	resolver *Resolver
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewBootstrapper wraps a resolver in a lifecycle service.
func NewBootstrapper(resolver *Resolver, log *logger.Logger) *Bootstrapper {
	if log == nil {
		log = logger.NewDefault("store-bootstrap")
	}
	return &Bootstrapper{resolver: resolver, log: log}
}

func (b *Bootstrapper) Name() string { return "store-bootstrap" }

func (b *Bootstrapper) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		res := b.resolver.Resolve(runCtx)
		entry := b.log.WithField("state", string(res.State)).WithField("store_id", res.StoreID)
		if res.Err != nil {
			entry.WithField("error_kind", string(res.Err.Kind)).Warn(res.ErrorMessage())
			return
		}
		entry.Info("store bootstrap finished")
	}()

	b.log.Info("store bootstrap started")
	return nil
}

func (b *Bootstrapper) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	cancel := b.cancel
	b.running = false
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.log.Info("store bootstrap stopped")
	return nil
}

// Resolve re-runs resolution on demand.
func (b *Bootstrapper) Resolve(ctx context.Context) Result {
	return b.resolver.Resolve(ctx)
}

// Snapshot returns the latest resolution result.
func (b *Bootstrapper) Snapshot() Result {
	return b.resolver.Snapshot()
}
