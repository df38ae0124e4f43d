// Package directory provides the clients through which the resolver reaches
// the store directory: over HTTP, or in-process when the directory runs in
// the same binary.
package directory

import (
	"context"
	"errors"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
)

// ErrStoreNotFound reports that the directory holds no record for the
// requested Shopify store id.
var ErrStoreNotFound = errors.New("store not found")

// Directory fetches and creates store records.
type Directory interface {
	GetStore(ctx context.Context, shopifyStoreID string) (store.Record, error)
	CreateStore(ctx context.Context, in store.CreateInput) (store.Record, error)
}

// Lister is implemented by directories that can enumerate stores.
type Lister interface {
	ListStores(ctx context.Context) ([]store.Record, error)
}
