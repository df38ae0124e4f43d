// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cartrewards/service_layer/internal/app/directory"
	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/kvcache"
)

// MockDirectory is an in-memory directory that counts calls and can hold
// creates until released.
type MockDirectory struct {
	mu          sync.Mutex
	records     map[string]store.Record
	getErr      error
	createErr   error
	getCalls    int
	createCalls int
	gate        chan struct{}
	started     chan struct{}
}

var _ directory.Directory = (*MockDirectory)(nil)

// NewMockDirectory creates a directory preloaded with records.
func NewMockDirectory(records ...store.Record) *MockDirectory {
	m := &MockDirectory{
		records: make(map[string]store.Record),
		started: make(chan struct{}, 16),
	}
	for _, rec := range records {
		m.records[rec.ShopifyStoreID] = rec
	}
	return m
}

// Put adds or replaces a record.
func (m *MockDirectory) Put(rec store.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ShopifyStoreID] = rec
}

// SetGetError makes every GetStore fail with err (nil clears it).
func (m *MockDirectory) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// SetCreateError makes every CreateStore fail with err (nil clears it).
func (m *MockDirectory) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// BlockCreates holds CreateStore calls until the returned release func runs.
func (m *MockDirectory) BlockCreates() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// CreateStarted receives once per CreateStore call, before it blocks.
func (m *MockDirectory) CreateStarted() <-chan struct{} {
	return m.started
}

// GetCalls returns how many fetches were issued.
func (m *MockDirectory) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// CreateCalls returns how many creates were issued.
func (m *MockDirectory) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

func (m *MockDirectory) GetStore(_ context.Context, shopifyStoreID string) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return store.Record{}, m.getErr
	}
	rec, ok := m.records[shopifyStoreID]
	if !ok {
		return store.Record{}, directory.ErrStoreNotFound
	}
	return rec, nil
}

func (m *MockDirectory) CreateStore(ctx context.Context, in store.CreateInput) (store.Record, error) {
	m.mu.Lock()
	m.createCalls++
	gate := m.gate
	m.mu.Unlock()

	select {
	case m.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return store.Record{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return store.Record{}, m.createErr
	}
	now := time.Now().UTC()
	rec := store.Record{
		ID:             uuid.NewString(),
		ShopifyStoreID: in.ShopifyStoreID,
		StoreName:      in.StoreName,
		AccessToken:    in.AccessToken,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.records[rec.ShopifyStoreID] = rec
	return rec, nil
}

// MockCache is a memory cache that counts writes and can fail reads.
type MockCache struct {
	*kvcache.Memory

	mu      sync.Mutex
	sets    int
	removes int
	getErr  error
}

var _ kvcache.Cache = (*MockCache)(nil)

// NewMockCache creates a cache preloaded with entries.
func NewMockCache(entries map[string]string) *MockCache {
	c := &MockCache{Memory: kvcache.NewMemory()}
	for k, v := range entries {
		_ = c.Memory.Set(context.Background(), k, v)
	}
	return c
}

// SetGetError makes Get fail with err (nil clears it).
func (c *MockCache) SetGetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr = err
}

func (c *MockCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	err := c.getErr
	c.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return c.Memory.Get(ctx, key)
}

func (c *MockCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.Memory.Set(ctx, key, value)
}

func (c *MockCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	c.removes++
	c.mu.Unlock()
	return c.Memory.Remove(ctx, key)
}

// Sets returns the number of Set calls.
func (c *MockCache) Sets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

// Removes returns the number of Remove calls.
func (c *MockCache) Removes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removes
}
