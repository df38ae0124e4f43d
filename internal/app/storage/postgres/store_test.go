package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/storage"
	"github.com/cartrewards/service_layer/internal/platform/migrations"
)

var columns = []string{"id", "shopify_store_id", "store_name", "access_token", "is_active", "created_at", "updated_at"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateStore(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO stores").WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := s.CreateStore(context.Background(), store.Record{ShopifyStoreID: "demo.myshopify.com", StoreName: "Demo", IsActive: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() || !rec.CreatedAt.Equal(rec.UpdatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateStoreConflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO stores").WillReturnError(&pq.Error{Code: "23505"})

	_, err := s.CreateStore(context.Background(), store.Record{ShopifyStoreID: "demo.myshopify.com"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGetStoreByShopifyID(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM stores WHERE shopify_store_id").
		WithArgs("demo.myshopify.com").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("id-1", "demo.myshopify.com", "Demo", "tok", true, created, created))

	rec, err := s.GetStoreByShopifyID(context.Background(), "demo.myshopify.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.ID != "id-1" || rec.StoreName != "Demo" || !rec.IsActive || !rec.CreatedAt.Equal(created) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetStoreNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM stores WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	if _, err := s.GetStore(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStoreKeepsIdentity(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM stores WHERE id").
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("id-1", "demo.myshopify.com", "Demo", "tok", true, created, created))
	mock.ExpectExec("UPDATE stores").WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := s.UpdateStore(context.Background(), store.Record{ID: "id-1", ShopifyStoreID: "other", StoreName: "Demo", IsActive: false})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.ShopifyStoreID != "demo.myshopify.com" || !rec.CreatedAt.Equal(created) || rec.IsActive {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAndCountStores(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM stores ORDER BY").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id-1", "a.myshopify.com", "A", "", true, now, now).
			AddRow("id-2", "b.myshopify.com", "B", "", false, now, now))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, err := s.ListStores(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[1].ShopifyStoreID != "b.myshopify.com" {
		t.Fatalf("unexpected list: %+v", list)
	}

	count, err := s.CountActiveStores(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("count: %d %v", count, err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	if err := migrations.Up(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	s := New(db)
	ctx := context.Background()
	shopID := "it-" + time.Now().UTC().Format("20060102150405.000000000") + ".myshopify.com"

	rec, err := s.CreateStore(ctx, store.Record{ShopifyStoreID: shopID, StoreName: "Integration", IsActive: true})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := s.CreateStore(ctx, store.Record{ShopifyStoreID: shopID}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, err := s.GetStoreByShopifyID(ctx, shopID)
	if err != nil || got.ID != rec.ID {
		t.Fatalf("get by shopify id: %v %+v", err, got)
	}
}
