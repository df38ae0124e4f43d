package httpapi

import (
	"net/http"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/services/resolver"
	"github.com/cartrewards/service_layer/internal/httputil"
)

// sessionResponse is the store bootstrap state consumed by the storefront.
type sessionResponse struct {
	StoreID   string         `json:"storeId"`
	IsLoading bool           `json:"isLoading"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"errorKind,omitempty"`
	Store     *store.Record  `json:"store,omitempty"`
	State     resolver.State `json:"state"`
}

func newSessionResponse(res resolver.Result) sessionResponse {
	out := sessionResponse{
		StoreID:   res.StoreID,
		IsLoading: res.Loading,
		Error:     res.ErrorMessage(),
		State:     res.State,
	}
	if res.Err != nil {
		out.ErrorKind = string(res.Err.Kind)
	}
	if res.Store != nil {
		redacted := res.Store.Redacted()
		out.Store = &redacted
	}
	return out
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, newSessionResponse(h.app.Bootstrap.Snapshot()))
}

func (h *handler) resolveSession(w http.ResponseWriter, r *http.Request) {
	res := h.app.Bootstrap.Resolve(r.Context())
	httputil.WriteJSON(w, http.StatusOK, newSessionResponse(res))
}
