package app

import (
	"context"
	"fmt"

	"github.com/cartrewards/service_layer/internal/app/directory"
	"github.com/cartrewards/service_layer/internal/app/domain/reward"
	"github.com/cartrewards/service_layer/internal/app/jobs"
	"github.com/cartrewards/service_layer/internal/app/kvcache"
	"github.com/cartrewards/service_layer/internal/app/metrics"
	"github.com/cartrewards/service_layer/internal/app/services/resolver"
	"github.com/cartrewards/service_layer/internal/app/services/rewards"
	"github.com/cartrewards/service_layer/internal/app/services/stores"
	"github.com/cartrewards/service_layer/internal/app/storage"
	"github.com/cartrewards/service_layer/internal/app/storage/memory"
	"github.com/cartrewards/service_layer/internal/app/system"
	"github.com/cartrewards/service_layer/internal/config"
	"github.com/cartrewards/service_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Stores storage.StoreStore
}

// Options carries the non-storage dependencies. Zero values fall back to
// in-process defaults: the local directory, an in-memory cache and the
// default milestone table.
type Options struct {
	Store     config.StoreConfig
	Catalog   reward.Catalog
	Directory directory.Directory
	Cache     kvcache.Cache
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Stores    *stores.Service
	Rewards   *rewards.Service
	Directory directory.Directory
	Resolver  *resolver.Resolver
	Bootstrap *resolver.Bootstrapper
	Jobs      *jobs.Scheduler
}

// New builds a fully initialised application with the provided stores.
func New(st Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if st.Stores == nil {
		st.Stores = memory.New()
	}

	manager := system.NewManager()

	storeService := stores.New(st.Stores, log.Named("stores"))
	rewardService := rewards.New(opts.Catalog, log.Named("rewards"))

	dir := opts.Directory
	if dir == nil {
		dir = directory.NewLocal(storeService)
	}
	cache := opts.Cache
	if cache == nil {
		cache = kvcache.NewMemory()
	}

	res := resolver.New(opts.Store, dir, cache, log.Named("store-resolver"))
	bootstrap := resolver.NewBootstrapper(res, log.Named("store-bootstrap"))

	scheduler := jobs.NewScheduler(log.Named("jobs"), 0)
	if err := scheduler.Add("active-store-gauge", "@every 1m", func(ctx context.Context) error {
		n, err := storeService.CountActive(ctx)
		if err != nil {
			return err
		}
		metrics.SetActiveStores(n)
		return nil
	}); err != nil {
		return nil, err
	}

	for _, svc := range []system.Service{bootstrap, scheduler} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:   manager,
		log:       log,
		Stores:    storeService,
		Rewards:   rewardService,
		Directory: dir,
		Resolver:  res,
		Bootstrap: bootstrap,
		Jobs:      scheduler,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the registered lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
