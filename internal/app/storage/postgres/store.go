package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/storage"
)

const uniqueViolation = "23505"

const storeColumns = `id, shopify_store_id, store_name, access_token, is_active, created_at, updated_at`

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.StoreStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// --- StoreStore -------------------------------------------------------------

func (s *Store) CreateStore(ctx context.Context, rec store.Record) (store.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO stores (`+storeColumns+`)
		VALUES (:id, :shopify_store_id, :store_name, :access_token, :is_active, :created_at, :updated_at)
	`, rec)
	if err != nil {
		return store.Record{}, mapError(err, "shopify store "+rec.ShopifyStoreID)
	}
	return rec, nil
}

func (s *Store) UpdateStore(ctx context.Context, rec store.Record) (store.Record, error) {
	existing, err := s.GetStore(ctx, rec.ID)
	if err != nil {
		return store.Record{}, err
	}

	rec.ShopifyStoreID = existing.ShopifyStoreID
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()

	result, err := s.db.NamedExecContext(ctx, `
		UPDATE stores
		SET store_name = :store_name, access_token = :access_token, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`, rec)
	if err != nil {
		return store.Record{}, mapError(err, "store "+rec.ID)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.Record{}, fmt.Errorf("store %s: %w", rec.ID, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) GetStore(ctx context.Context, id string) (store.Record, error) {
	var rec store.Record
	err := s.db.GetContext(ctx, &rec, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	if err != nil {
		return store.Record{}, mapError(err, "store "+id)
	}
	return normalize(rec), nil
}

func (s *Store) GetStoreByShopifyID(ctx context.Context, shopifyStoreID string) (store.Record, error) {
	var rec store.Record
	err := s.db.GetContext(ctx, &rec, `SELECT `+storeColumns+` FROM stores WHERE shopify_store_id = $1`, shopifyStoreID)
	if err != nil {
		return store.Record{}, mapError(err, "shopify store "+shopifyStoreID)
	}
	return normalize(rec), nil
}

func (s *Store) ListStores(ctx context.Context) ([]store.Record, error) {
	var records []store.Record
	if err := s.db.SelectContext(ctx, &records, `SELECT `+storeColumns+` FROM stores ORDER BY created_at, shopify_store_id`); err != nil {
		return nil, err
	}
	for i := range records {
		records[i] = normalize(records[i])
	}
	return records, nil
}

func (s *Store) CountActiveStores(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM stores WHERE is_active`); err != nil {
		return 0, err
	}
	return count, nil
}

func normalize(rec store.Record) store.Record {
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec
}

func mapError(err error, subject string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", subject, storage.ErrConflict)
	}
	return err
}
