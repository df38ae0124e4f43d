package storage

import (
	"context"
	"errors"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("already exists")
)

// StoreStore persists merchant store records.
type StoreStore interface {
	CreateStore(ctx context.Context, rec store.Record) (store.Record, error)
	UpdateStore(ctx context.Context, rec store.Record) (store.Record, error)
	GetStore(ctx context.Context, id string) (store.Record, error)
	GetStoreByShopifyID(ctx context.Context, shopifyStoreID string) (store.Record, error)
	ListStores(ctx context.Context) ([]store.Record, error)
	CountActiveStores(ctx context.Context) (int, error)
}
