// Package reward models milestone tiers and free-product selection for the
// cart drawer. Amounts are cart totals in minor currency units, matching the
// storefront cart's total_price.
package reward

import (
	"fmt"
	"sort"
	"strings"
)

// Tier unlocks FreeProducts selections once the cart reaches Threshold.
type Tier struct {
	Threshold    int64  `json:"threshold"`
	FreeProducts int    `json:"freeProducts"`
	Label        string `json:"label,omitempty"`
}

// Product is a free product a shopper may pick.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Table is an ordered threshold table, highest threshold first.
type Table struct {
	tiers []Tier
}

// NewTable validates and orders tiers.
func NewTable(tiers []Tier) (Table, error) {
	seen := make(map[int64]bool, len(tiers))
	out := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.Threshold <= 0 {
			return Table{}, fmt.Errorf("tier threshold must be positive, got %d", t.Threshold)
		}
		if t.FreeProducts <= 0 {
			return Table{}, fmt.Errorf("tier %d: free products must be positive, got %d", t.Threshold, t.FreeProducts)
		}
		if seen[t.Threshold] {
			return Table{}, fmt.Errorf("duplicate tier threshold %d", t.Threshold)
		}
		seen[t.Threshold] = true
		t.Label = strings.TrimSpace(t.Label)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Threshold > out[j].Threshold })
	return Table{tiers: out}, nil
}

// DefaultTable is the stock 3000/4000/5000 milestone ladder.
func DefaultTable() Table {
	return Table{tiers: []Tier{
		{Threshold: 5000, FreeProducts: 3, Label: "Gold"},
		{Threshold: 4000, FreeProducts: 2, Label: "Silver"},
		{Threshold: 3000, FreeProducts: 1, Label: "Bronze"},
	}}
}

// Tiers returns the tiers, highest threshold first.
func (t Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// MaxAllowed returns how many free products a cart of cartValue unlocks.
func (t Table) MaxAllowed(cartValue int64) int {
	if tier, ok := t.current(cartValue); ok {
		return tier.FreeProducts
	}
	return 0
}

func (t Table) current(cartValue int64) (Tier, bool) {
	for _, tier := range t.tiers {
		if cartValue >= tier.Threshold {
			return tier, true
		}
	}
	return Tier{}, false
}

// Progress describes where a cart sits on the milestone ladder.
type Progress struct {
	Current   *Tier `json:"current,omitempty"`
	Next      *Tier `json:"next,omitempty"`
	Remaining int64 `json:"remaining"`
}

// Progress reports the reached tier, the next one and the amount still
// needed to reach it. Remaining is 0 once the top tier is reached.
func (t Table) Progress(cartValue int64) Progress {
	var p Progress
	if cur, ok := t.current(cartValue); ok {
		p.Current = &cur
	}
	for i := len(t.tiers) - 1; i >= 0; i-- {
		if t.tiers[i].Threshold > cartValue {
			next := t.tiers[i]
			p.Next = &next
			p.Remaining = next.Threshold - cartValue
			break
		}
	}
	return p
}

// Catalog is a store's milestone configuration served to the storefront.
type Catalog struct {
	Currency string    `json:"currency,omitempty"`
	Table    Table     `json:"-"`
	Products []Product `json:"products"`
}

// HasProduct reports whether id is a listed free product. An empty product
// list accepts any id.
func (c Catalog) HasProduct(id string) bool {
	if len(c.Products) == 0 {
		return true
	}
	for _, p := range c.Products {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ValidateProducts rejects empty or duplicate product ids.
func ValidateProducts(products []Product) error {
	seen := make(map[string]bool, len(products))
	for _, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("product id is required")
		}
		if seen[id] {
			return fmt.Errorf("duplicate product id %s", id)
		}
		seen[id] = true
	}
	return nil
}
