package httpapi

import (
	"net/http"

	svcerrors "github.com/cartrewards/service_layer/internal/errors"
	"github.com/cartrewards/service_layer/internal/httputil"
)

type eligibilityRequest struct {
	CartValue *int64   `json:"cartValue"`
	Selected  []string `json:"selected"`
}

type selectionRequest struct {
	CartValue *int64   `json:"cartValue"`
	Selected  []string `json:"selected"`
	ProductID string   `json:"productId"`
}

func (h *handler) eligibility(w http.ResponseWriter, r *http.Request) {
	var payload eligibilityRequest
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.CartValue == nil {
		httputil.WriteError(w, svcerrors.BadRequest("cartValue is required", nil))
		return
	}
	result, err := h.app.Rewards.Evaluate(*payload.CartValue, payload.Selected)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *handler) selection(w http.ResponseWriter, r *http.Request) {
	var payload selectionRequest
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.CartValue == nil {
		httputil.WriteError(w, svcerrors.BadRequest("cartValue is required", nil))
		return
	}
	result, err := h.app.Rewards.Toggle(*payload.CartValue, payload.Selected, payload.ProductID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
