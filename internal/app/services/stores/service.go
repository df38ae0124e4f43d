package stores

import (
	"context"
	"fmt"
	"strings"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/metrics"
	"github.com/cartrewards/service_layer/internal/app/storage"
	"github.com/cartrewards/service_layer/pkg/logger"
)

// ValidationError reports a create payload that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Service manages the store directory.
type Service struct {
	store storage.StoreStore
	log   *logger.Logger
}

// New constructs a store directory service.
func New(store storage.StoreStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("stores")
	}
	return &Service{store: store, log: log}
}

// Create registers a new active store.
func (s *Service) Create(ctx context.Context, in store.CreateInput) (store.Record, error) {
	rec, err := normalizeInput(in)
	if err != nil {
		return store.Record{}, err
	}

	created, err := s.store.CreateStore(ctx, rec)
	if err != nil {
		return store.Record{}, err
	}
	metrics.RecordStoreCreated()
	s.log.WithField("store_id", created.ID).
		WithField("shopify_store_id", created.ShopifyStoreID).
		Info("store created")
	return created, nil
}

// GetByShopifyID looks a store up by its natural key.
func (s *Service) GetByShopifyID(ctx context.Context, shopifyStoreID string) (store.Record, error) {
	return s.store.GetStoreByShopifyID(ctx, NormalizeShopifyID(shopifyStoreID))
}

// Get looks a store up by internal id.
func (s *Service) Get(ctx context.Context, id string) (store.Record, error) {
	return s.store.GetStore(ctx, strings.TrimSpace(id))
}

// List returns every store record.
func (s *Service) List(ctx context.Context) ([]store.Record, error) {
	return s.store.ListStores(ctx)
}

// CountActive returns the number of active stores.
func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.store.CountActiveStores(ctx)
}

// SetActive toggles whether the store is active.
func (s *Service) SetActive(ctx context.Context, shopifyStoreID string, active bool) (store.Record, error) {
	rec, err := s.GetByShopifyID(ctx, shopifyStoreID)
	if err != nil {
		return store.Record{}, err
	}
	if rec.IsActive == active {
		return rec, nil
	}
	rec.IsActive = active
	updated, err := s.store.UpdateStore(ctx, rec)
	if err != nil {
		return store.Record{}, err
	}
	s.log.WithField("store_id", updated.ID).
		WithField("shopify_store_id", updated.ShopifyStoreID).
		WithField("active", active).
		Info("store state changed")
	return updated, nil
}

// NormalizeShopifyID trims and lower-cases a Shopify store identifier.
func NormalizeShopifyID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func normalizeInput(in store.CreateInput) (store.Record, error) {
	rec := store.Record{
		ShopifyStoreID: NormalizeShopifyID(in.ShopifyStoreID),
		StoreName:      strings.TrimSpace(in.StoreName),
		AccessToken:    strings.TrimSpace(in.AccessToken),
		IsActive:       true,
	}
	switch {
	case rec.ShopifyStoreID == "":
		return store.Record{}, &ValidationError{Field: "shopifyStoreId", Message: "is required"}
	case strings.ContainsAny(rec.ShopifyStoreID, " \t\r\n/\\"):
		return store.Record{}, &ValidationError{Field: "shopifyStoreId", Message: "must not contain whitespace or slashes"}
	case rec.StoreName == "":
		return store.Record{}, &ValidationError{Field: "storeName", Message: "is required"}
	case rec.AccessToken == "":
		return store.Record{}, &ValidationError{Field: "accessToken", Message: "is required"}
	}
	return rec, nil
}
