package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	svcerrors "github.com/cartrewards/service_layer/internal/errors"
	"github.com/cartrewards/service_layer/internal/httputil"
)

func (h *handler) listStores(w http.ResponseWriter, r *http.Request) {
	records, err := h.app.Stores.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]store.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Redacted())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) createStore(w http.ResponseWriter, r *http.Request) {
	var payload store.CreateInput
	if !h.decode(w, r, &payload) {
		return
	}
	rec, err := h.app.Stores.Create(r.Context(), payload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec.Redacted())
}

func (h *handler) getStore(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Stores.GetByShopifyID(r.Context(), mux.Vars(r)["shopifyStoreId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec.Redacted())
}

func (h *handler) updateStore(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IsActive *bool `json:"isActive"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.IsActive == nil {
		httputil.WriteError(w, svcerrors.BadRequest("isActive is required", nil))
		return
	}
	rec, err := h.app.Stores.SetActive(r.Context(), mux.Vars(r)["shopifyStoreId"], *payload.IsActive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec.Redacted())
}

// storeMilestones serves the milestone catalog to an active store's
// storefront script.
func (h *handler) storeMilestones(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.Stores.GetByShopifyID(r.Context(), mux.Vars(r)["shopifyStoreId"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !rec.IsActive {
		httputil.WriteError(w, svcerrors.NotFound("store not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.app.Rewards.View())
}
