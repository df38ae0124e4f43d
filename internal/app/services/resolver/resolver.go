// Package resolver maps the configured Shopify store onto its store
// directory record, creating the record on first use and remembering the
// resolved id in a key/value cache.
//
// Resolution order:
//
//  1. The cached id (read once per resolver) is a provisional answer.
//  2. The directory is asked for the record. A 404 means absence. Any other
//     failure is logged as a fetch error and resolution falls through.
//  3. A fetched record always wins: it is cached and returned, and a create
//     that completes later is ignored.
//  4. Without a record and without a create in flight: incomplete
//     configuration yields a configuration error (production also clears
//     the cache), a cached id is returned as is, and otherwise the record
//     is created.
//  5. While a create is in flight, further calls return the pending state.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cartrewards/service_layer/internal/app/directory"
	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/kvcache"
	"github.com/cartrewards/service_layer/internal/app/metrics"
	"github.com/cartrewards/service_layer/internal/config"
	"github.com/cartrewards/service_layer/pkg/logger"
)

// CacheKey is the cache entry holding the last resolved store id.
const CacheKey = "resolved_store_id"

// State is the resolver's position in its state machine.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateFound    State = "found"
	StateCached   State = "cached"
	StateCreating State = "creating"
	StateCreated  State = "created"
	StateFailed   State = "failed"
)

// ErrorKind classifies resolution failures.
type ErrorKind string

const (
	// KindFetch is a failed lookup. It never blocks the fallback path.
	KindFetch ErrorKind = "fetch"
	// KindCreate is a failed create. It ends the attempt and is not retried.
	KindCreate ErrorKind = "create"
	// KindConfiguration means the store cannot be resolved without operator
	// action.
	KindConfiguration ErrorKind = "configuration"
)

// Error is a typed resolution failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is what callers and UIs consume. Errors are carried as values.
type Result struct {
	StoreID string
	Store   *store.Record
	Loading bool
	State   State
	Err     *Error
}

// ErrorMessage returns the human-readable error, or "" when there is none.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Resolver resolves one configured store. A single instance should be shared
// by everything serving that store so the create guard holds.
type Resolver struct {
	cfg   config.StoreConfig
	dir   directory.Directory
	cache kvcache.Cache
	log   *logger.Logger

	flight singleflight.Group

	mu          sync.Mutex
	cacheLoaded bool
	cachedID    string
	record      *store.Record
	fetched     bool
	creating    bool
	last        Result
}

// New constructs a resolver. A nil cache keeps the id in memory only.
func New(cfg config.StoreConfig, dir directory.Directory, cache kvcache.Cache, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewDefault("store-resolver")
	}
	if cache == nil {
		cache = kvcache.NewMemory()
	}
	return &Resolver{
		cfg:   cfg,
		dir:   dir,
		cache: cache,
		log:   log,
		last:  Result{Loading: true, State: StateIdle},
	}
}

// Snapshot returns the most recently published result.
func (r *Resolver) Snapshot() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Resolve runs one resolution pass.
func (r *Resolver) Resolve(ctx context.Context) Result {
	r.loadCache(ctx)

	r.mu.Lock()
	if r.last.State == StateIdle {
		r.last = Result{StoreID: r.cachedID, Loading: true, State: StateFetching}
	}
	r.mu.Unlock()

	rec, found, fetchErr := r.fetch(ctx)
	if found {
		return r.applyFetched(ctx, rec)
	}

	r.mu.Lock()
	if r.creating {
		res := Result{StoreID: r.cachedID, Loading: true, State: StateCreating}
		r.mu.Unlock()
		metrics.RecordResolution("pending")
		return res
	}

	if !r.cfg.CanCreateStore() {
		res := r.configurationErrorLocked(ctx)
		r.mu.Unlock()
		return res
	}

	if r.cachedID != "" {
		state := StateCached
		if r.record != nil && r.record.ID == r.cachedID {
			state = StateFound
		}
		r.last = Result{StoreID: r.cachedID, Store: r.record, State: state}
		res := r.last
		r.mu.Unlock()
		entry := r.log.WithField("store_id", res.StoreID)
		if fetchErr != nil {
			entry = entry.WithError(fetchErr)
		}
		entry.Info("serving cached store id")
		metrics.RecordResolution("cached")
		return res
	}

	r.creating = true
	r.last = Result{Loading: true, State: StateCreating}
	r.mu.Unlock()

	return r.create(ctx)
}

func (r *Resolver) loadCache(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cacheLoaded {
		return
	}
	r.cacheLoaded = true

	id, ok, err := r.cache.Get(ctx, CacheKey)
	if err != nil {
		r.log.WithError(err).Warn("read cached store id failed")
		return
	}
	if ok && strings.TrimSpace(id) != "" && r.cachedID == "" {
		r.cachedID = strings.TrimSpace(id)
	}
}

func (r *Resolver) fetch(ctx context.Context) (store.Record, bool, error) {
	shopID := strings.TrimSpace(r.cfg.ShopifyStoreID)
	if shopID == "" {
		return store.Record{}, false, nil
	}

	rec, err := r.dir.GetStore(ctx, shopID)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, directory.ErrStoreNotFound):
		return store.Record{}, false, nil
	default:
		fetchErr := &Error{Kind: KindFetch, Message: "fetch store " + shopID, Err: err}
		r.log.WithError(err).
			WithField("shopify_store_id", shopID).
			Warn("store fetch failed; falling back")
		metrics.RecordResolution("fetch_error")
		return store.Record{}, false, fetchErr
	}
}

func (r *Resolver) applyFetched(ctx context.Context, rec store.Record) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record = &rec
	r.fetched = true
	r.rememberLocked(ctx, rec.ID)
	r.last = Result{StoreID: rec.ID, Store: r.record, State: StateFound}

	r.log.WithField("store_id", rec.ID).
		WithField("shopify_store_id", rec.ShopifyStoreID).
		Info("store resolved")
	metrics.RecordResolution("found")
	return r.last
}

func (r *Resolver) create(ctx context.Context) Result {
	in := store.CreateInput{
		ShopifyStoreID: strings.TrimSpace(r.cfg.ShopifyStoreID),
		StoreName:      strings.TrimSpace(r.cfg.ShopifyStoreName),
		AccessToken:    strings.TrimSpace(r.cfg.ShopifyAccessToken),
	}
	detached := context.WithoutCancel(ctx)

	ch := r.flight.DoChan(in.ShopifyStoreID, func() (interface{}, error) {
		rec, err := r.dir.CreateStore(detached, in)
		return r.applyCreated(detached, rec, err), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Result)
	case <-ctx.Done():
		return r.Snapshot()
	}
}

func (r *Resolver) applyCreated(ctx context.Context, rec store.Record, err error) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creating = false

	if r.fetched {
		entry := r.log.WithField("store_id", r.record.ID)
		if err == nil {
			entry = entry.WithField("created_store_id", rec.ID)
		} else {
			entry = entry.WithError(err)
		}
		entry.Info("create finished after fetch resolved the store; ignoring create result")
		r.last.Loading = false
		return r.last
	}

	if err != nil {
		createErr := &Error{Kind: KindCreate, Message: "create store " + r.cfg.ShopifyStoreID, Err: err}
		r.log.WithError(err).
			WithField("shopify_store_id", r.cfg.ShopifyStoreID).
			Error("store create failed")
		metrics.RecordResolution("create_error")
		r.last = Result{StoreID: r.cachedID, State: StateFailed, Err: createErr}
		return r.last
	}

	r.record = &rec
	r.rememberLocked(ctx, rec.ID)
	r.last = Result{StoreID: rec.ID, Store: r.record, State: StateCreated}
	r.log.WithField("store_id", rec.ID).
		WithField("shopify_store_id", rec.ShopifyStoreID).
		Info("store created")
	metrics.RecordResolution("created")
	return r.last
}

func (r *Resolver) configurationErrorLocked(ctx context.Context) Result {
	missing := strings.Join(r.cfg.MissingVariables(), ", ")
	entry := r.log.WithField("missing", missing).WithField("mode", string(r.cfg.DeploymentMode))

	var cfgErr *Error
	if r.cfg.IsProduction() {
		if err := r.cache.Remove(ctx, CacheKey); err != nil {
			entry.WithError(err).Warn("clear cached store id failed")
		}
		r.cachedID = ""
		cfgErr = &Error{
			Kind: KindConfiguration,
			Message: fmt.Sprintf("store %q is not provisioned and %s are not configured in production; "+
				"provision the store record or set the variables", r.cfg.ShopifyStoreID, missing),
		}
		entry.Error("store cannot be resolved in production")
	} else {
		cfgErr = &Error{
			Kind:    KindConfiguration,
			Message: fmt.Sprintf("missing %s; add them to .env to create the store automatically", missing),
		}
		entry.Warn("store cannot be created in development")
	}

	r.last = Result{StoreID: r.cachedID, State: StateFailed, Err: cfgErr}
	metrics.RecordResolution("configuration_error")
	return r.last
}

func (r *Resolver) rememberLocked(ctx context.Context, id string) {
	if r.cachedID == id {
		return
	}
	r.cachedID = id
	if err := r.cache.Set(ctx, CacheKey, id); err != nil {
		r.log.WithError(err).WithField("store_id", id).Warn("persist store id failed")
	}
}
