package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu        sync.RWMutex
	stores    map[string]store.Record
	byShopify map[string]string
	now       func() time.Time
}

var _ storage.StoreStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		stores:    make(map[string]store.Record),
		byShopify: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// StoreStore implementation ---------------------------------------------------

func (s *Store) CreateStore(_ context.Context, rec store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else if _, exists := s.stores[rec.ID]; exists {
		return store.Record{}, fmt.Errorf("store %s: %w", rec.ID, storage.ErrConflict)
	}
	if _, exists := s.byShopify[rec.ShopifyStoreID]; exists {
		return store.Record{}, fmt.Errorf("shopify store %s: %w", rec.ShopifyStoreID, storage.ErrConflict)
	}

	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.stores[rec.ID] = rec
	s.byShopify[rec.ShopifyStoreID] = rec.ID
	return rec, nil
}

func (s *Store) UpdateStore(_ context.Context, rec store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.stores[rec.ID]
	if !ok {
		return store.Record{}, fmt.Errorf("store %s: %w", rec.ID, storage.ErrNotFound)
	}

	rec.ShopifyStoreID = original.ShopifyStoreID
	rec.CreatedAt = original.CreatedAt
	rec.UpdatedAt = s.now()

	s.stores[rec.ID] = rec
	return rec, nil
}

func (s *Store) GetStore(_ context.Context, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.stores[id]
	if !ok {
		return store.Record{}, fmt.Errorf("store %s: %w", id, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) GetStoreByShopifyID(_ context.Context, shopifyStoreID string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byShopify[shopifyStoreID]
	if !ok {
		return store.Record{}, fmt.Errorf("shopify store %s: %w", shopifyStoreID, storage.ErrNotFound)
	}
	return s.stores[id], nil
}

func (s *Store) ListStores(_ context.Context) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]store.Record, 0, len(s.stores))
	for _, rec := range s.stores {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ShopifyStoreID < result[j].ShopifyStoreID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) CountActiveStores(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.stores {
		if rec.IsActive {
			count++
		}
	}
	return count, nil
}
