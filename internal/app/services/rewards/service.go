package rewards

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cartrewards/service_layer/internal/app/domain/reward"
	"github.com/cartrewards/service_layer/internal/app/metrics"
	"github.com/cartrewards/service_layer/pkg/logger"
)

var (
	// ErrInvalidCartValue is returned for negative cart totals.
	ErrInvalidCartValue = errors.New("cart value must not be negative")
	// ErrUnknownProduct is returned for product ids outside the catalog.
	ErrUnknownProduct = errors.New("product is not a reward product")
	// ErrProductRequired is returned when a toggle names no product.
	ErrProductRequired = errors.New("product id is required")
)

// Eligibility is the reward state for a cart.
type Eligibility struct {
	CartValue  int64           `json:"cartValue"`
	MaxAllowed int             `json:"maxAllowed"`
	State      reward.State    `json:"state"`
	Selected   []string        `json:"selected"`
	Progress   reward.Progress `json:"progress"`
}

// ToggleResult reports whether a toggle was applied and the resulting state.
type ToggleResult struct {
	Accepted bool `json:"accepted"`
	Eligibility
}

// CatalogView is the milestone payload served to storefront scripts.
type CatalogView struct {
	Currency string           `json:"currency,omitempty"`
	Tiers    []reward.Tier    `json:"tiers"`
	Products []reward.Product `json:"products"`
}

// Service evaluates reward eligibility against a milestone catalog.
type Service struct {
	catalog reward.Catalog
	log     *logger.Logger
}

// New constructs a rewards service.
func New(catalog reward.Catalog, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("rewards")
	}
	if len(catalog.Table.Tiers()) == 0 {
		catalog.Table = reward.DefaultTable()
	}
	return &Service{catalog: catalog, log: log}
}

// Catalog returns the milestone catalog.
func (s *Service) Catalog() reward.Catalog {
	return s.catalog
}

// View returns the catalog in its wire shape.
func (s *Service) View() CatalogView {
	products := s.catalog.Products
	if products == nil {
		products = []reward.Product{}
	}
	return CatalogView{
		Currency: s.catalog.Currency,
		Tiers:    s.catalog.Table.Tiers(),
		Products: products,
	}
}

// Evaluate computes eligibility for a cart and a prior selection. Selections
// beyond the allowance are trimmed, newest first.
func (s *Service) Evaluate(cartValue int64, selected []string) (Eligibility, error) {
	sel, err := s.restore(cartValue, selected)
	if err != nil {
		return Eligibility{}, err
	}
	return s.snapshot(cartValue, sel), nil
}

// Toggle flips productID in the selection for the given cart.
func (s *Service) Toggle(cartValue int64, selected []string, productID string) (ToggleResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ToggleResult{}, ErrProductRequired
	}
	if !s.catalog.HasProduct(productID) {
		return ToggleResult{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	sel, err := s.restore(cartValue, selected)
	if err != nil {
		return ToggleResult{}, err
	}

	accepted := sel.Toggle(productID)
	if !accepted {
		s.log.WithField("product_id", productID).
			WithField("max_allowed", sel.MaxAllowed()).
			Debug("reward selection rejected")
	}
	return ToggleResult{Accepted: accepted, Eligibility: s.snapshot(cartValue, sel)}, nil
}

// NewSession starts a stateful selection session, as held by one cart drawer.
func (s *Service) NewSession() *Session {
	return &Session{svc: s, sel: reward.NewSelection(0)}
}

func (s *Service) restore(cartValue int64, selected []string) (*reward.Selection, error) {
	if cartValue < 0 {
		return nil, ErrInvalidCartValue
	}
	cleaned := make([]string, 0, len(selected))
	for _, id := range selected {
		id = strings.TrimSpace(id)
		if !s.catalog.HasProduct(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
		}
		cleaned = append(cleaned, id)
	}
	return reward.Restore(s.catalog.Table.MaxAllowed(cartValue), cleaned), nil
}

func (s *Service) snapshot(cartValue int64, sel *reward.Selection) Eligibility {
	state := sel.State()
	metrics.RecordRewardEvaluation(string(state))
	return Eligibility{
		CartValue:  cartValue,
		MaxAllowed: sel.MaxAllowed(),
		State:      state,
		Selected:   sel.Selected(),
		Progress:   s.catalog.Table.Progress(cartValue),
	}
}

// Session tracks one shopper's cart value and selection across updates.
type Session struct {
	svc *Service

	mu        sync.Mutex
	cartValue int64
	sel       *reward.Selection
}

// UpdateCart re-evaluates the selection for a new cart total.
func (s *Session) UpdateCart(cartValue int64) (Eligibility, error) {
	if cartValue < 0 {
		return Eligibility{}, ErrInvalidCartValue
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartValue = cartValue
	s.sel.SetMaxAllowed(s.svc.catalog.Table.MaxAllowed(cartValue))
	return s.svc.snapshot(cartValue, s.sel), nil
}

// Toggle flips productID in the session's selection.
func (s *Session) Toggle(productID string) (ToggleResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ToggleResult{}, ErrProductRequired
	}
	if !s.svc.catalog.HasProduct(productID) {
		return ToggleResult{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	accepted := s.sel.Toggle(productID)
	return ToggleResult{Accepted: accepted, Eligibility: s.svc.snapshot(s.cartValue, s.sel)}, nil
}

// Current returns the session's eligibility without changing it.
func (s *Session) Current() Eligibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc.snapshot(s.cartValue, s.sel)
}
