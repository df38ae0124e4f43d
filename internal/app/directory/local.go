package directory

import (
	"context"
	"errors"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/services/stores"
	"github.com/cartrewards/service_layer/internal/app/storage"
)

// Local serves the directory from an in-process stores service.
type Local struct {
	svc *stores.Service
}

var (
	_ Directory = (*Local)(nil)
	_ Lister    = (*Local)(nil)
)

// NewLocal wraps a stores service.
func NewLocal(svc *stores.Service) *Local {
	return &Local{svc: svc}
}

func (l *Local) GetStore(ctx context.Context, shopifyStoreID string) (store.Record, error) {
	rec, err := l.svc.GetByShopifyID(ctx, shopifyStoreID)
	if errors.Is(err, storage.ErrNotFound) {
		return store.Record{}, ErrStoreNotFound
	}
	return rec, err
}

func (l *Local) CreateStore(ctx context.Context, in store.CreateInput) (store.Record, error) {
	return l.svc.Create(ctx, in)
}

func (l *Local) ListStores(ctx context.Context) ([]store.Record, error) {
	return l.svc.List(ctx)
}
