package store

import "time"

// Record represents a connected Shopify merchant store. ShopifyStoreID is
// the unique natural key; ID is the internal identifier.
type Record struct {
	ID             string    `json:"id" db:"id"`
	ShopifyStoreID string    `json:"shopifyStoreId" db:"shopify_store_id"`
	StoreName      string    `json:"storeName" db:"store_name"`
	AccessToken    string    `json:"accessToken,omitempty" db:"access_token"`
	IsActive       bool      `json:"isActive" db:"is_active"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Redacted returns a copy safe to hand to storefront clients.
func (r Record) Redacted() Record {
	r.AccessToken = ""
	return r
}

// CreateInput is the payload accepted by the directory's create operation.
type CreateInput struct {
	ShopifyStoreID string `json:"shopifyStoreId"`
	StoreName      string `json:"storeName"`
	AccessToken    string `json:"accessToken"`
}
