package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	app "github.com/cartrewards/service_layer/internal/app"
	"github.com/cartrewards/service_layer/internal/app/domain/reward"
	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/app/services/resolver"
	"github.com/cartrewards/service_layer/internal/config"
	"github.com/cartrewards/service_layer/internal/middleware"
	"github.com/cartrewards/service_layer/pkg/logger"
)

func newTestHandler(t *testing.T, opts app.Options) (*app.Application, http.Handler) {
	t.Helper()
	application, err := app.New(app.Stores{}, opts, logger.Discard())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return application, NewHandler(application, Options{Logger: logger.Discard()})
}

func TestStoreDirectoryLifecycle(t *testing.T) {
	_, handler := newTestHandler(t, app.Options{})

	body := marshal(map[string]any{
		"shopifyStoreId": "Demo.myshopify.com",
		"storeName":      "Demo",
		"accessToken":    "shpat_secret",
	})
	resp := do(handler, http.MethodPost, "/api/stores", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	created := decodeMap(t, resp)
	if created["shopifyStoreId"] != "demo.myshopify.com" {
		t.Fatalf("expected normalized id, got %v", created["shopifyStoreId"])
	}
	if _, ok := created["accessToken"]; ok {
		t.Fatalf("access token must not be returned: %v", created)
	}
	if created["isActive"] != true {
		t.Fatalf("expected active store: %v", created)
	}

	resp = do(handler, http.MethodPost, "/api/stores", body)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", resp.Code)
	}

	resp = do(handler, http.MethodGet, "/api/stores/demo.myshopify.com", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	fetched := decodeMap(t, resp)
	if fetched["id"] != created["id"] {
		t.Fatalf("expected id %v, got %v", created["id"], fetched["id"])
	}
	if strings.Contains(resp.Body.String(), "shpat_secret") {
		t.Fatalf("token leaked: %s", resp.Body.String())
	}

	resp = do(handler, http.MethodGet, "/api/stores", nil)
	var list []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 store, got %d", len(list))
	}

	resp = do(handler, http.MethodPatch, "/api/stores/demo.myshopify.com", marshal(map[string]any{"isActive": false}))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d: %s", resp.Code, resp.Body.String())
	}
	if decodeMap(t, resp)["isActive"] != false {
		t.Fatalf("expected store to be inactive")
	}
}

func TestGetUnknownStoreReturns404(t *testing.T) {
	_, handler := newTestHandler(t, app.Options{})

	resp := do(handler, http.MethodGet, "/api/stores/missing.myshopify.com", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if decodeMap(t, resp)["error"] != "store not found" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestCreateStoreValidation(t *testing.T) {
	_, handler := newTestHandler(t, app.Options{})

	cases := []struct {
		name string
		body []byte
	}{
		{"missing name", marshal(map[string]any{"shopifyStoreId": "a.myshopify.com", "accessToken": "x"})},
		{"unknown field", marshal(map[string]any{"shopifyStoreId": "a", "storeName": "A", "accessToken": "x", "extra": 1})},
		{"empty body", nil},
		{"slash in id", marshal(map[string]any{"shopifyStoreId": "a/b", "storeName": "A", "accessToken": "x"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(handler, http.MethodPost, "/api/stores", tc.body)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestPatchRequiresIsActive(t *testing.T) {
	_, handler := newTestHandler(t, app.Options{})
	resp := do(handler, http.MethodPatch, "/api/stores/demo.myshopify.com", marshal(map[string]any{}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStoreMilestones(t *testing.T) {
	catalog := reward.Catalog{
		Currency: "INR",
		Table:    reward.DefaultTable(),
		Products: []reward.Product{{ID: "p1", Title: "Pouch"}},
	}
	application, handler := newTestHandler(t, app.Options{Catalog: catalog})
	ctx := context.Background()
	if _, err := application.Stores.Create(ctx, storeInput("demo.myshopify.com")); err != nil {
		t.Fatalf("create store: %v", err)
	}

	resp := do(handler, http.MethodGet, "/api/stores/demo.myshopify.com/milestones", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var view struct {
		Currency string `json:"currency"`
		Tiers    []struct {
			Threshold    int64 `json:"threshold"`
			FreeProducts int   `json:"freeProducts"`
		} `json:"tiers"`
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Currency != "INR" || len(view.Tiers) != 3 || view.Tiers[0].Threshold != 5000 || len(view.Products) != 1 {
		t.Fatalf("unexpected view %+v", view)
	}

	if _, err := application.Stores.SetActive(ctx, "demo.myshopify.com", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	resp = do(handler, http.MethodGet, "/api/stores/demo.myshopify.com/milestones", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for inactive store, got %d", resp.Code)
	}
	resp = do(handler, http.MethodGet, "/api/stores/other.myshopify.com/milestones", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown store, got %d", resp.Code)
	}
}

func TestEligibilityEndpoint(t *testing.T) {
	_, handler := newTestHandler(t, app.Options{})

	cases := []struct {
		cart  int64
		max   float64
		state string
	}{
		{0, 0, "locked"},
		{2999, 0, "locked"},
		{3000, 1, "selecting"},
		{4500, 2, "selecting"},
		{5000, 3, "selecting"},
		{10000, 3, "selecting"},
	}
	for _, tc := range cases {
		resp := do(handler, http.MethodPost, "/api/rewards/eligibility", marshal(map[string]any{"cartValue": tc.cart}))
		if resp.Code != http.StatusOK {
			t.Fatalf("cart %d: expected 200, got %d", tc.cart, resp.Code)
		}
		body := decodeMap(t, resp)
		if body["maxAllowed"] != tc.max || body["state"] != tc.state {
			t.Fatalf("cart %d: unexpected body %v", tc.cart, body)
		}
	}

	resp := do(handler, http.MethodPost, "/api/rewards/eligibility", marshal(map[string]any{"cartValue": 4000, "selected": []string{"a", "b", "c"}}))
	body := decodeMap(t, resp)
	selected, _ := body["selected"].([]any)
	if len(selected) != 2 || selected[0] != "a" || selected[1] != "b" {
		t.Fatalf("expected selection trimmed to [a b], got %v", body["selected"])
	}

	resp = do(handler, http.MethodPost, "/api/rewards/eligibility", marshal(map[string]any{"cartValue": -1}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative cart, got %d", resp.Code)
	}
	resp = do(handler, http.MethodPost, "/api/rewards/eligibility", marshal(map[string]any{"selected": []string{}}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without cartValue, got %d", resp.Code)
	}
}

func TestSelectionEndpoint(t *testing.T) {
	catalog := reward.Catalog{
		Table:    reward.DefaultTable(),
		Products: []reward.Product{{ID: "p1"}, {ID: "p2"}},
	}
	_, handler := newTestHandler(t, app.Options{Catalog: catalog})

	resp := do(handler, http.MethodPost, "/api/rewards/selection", marshal(map[string]any{
		"cartValue": 3000, "selected": []string{}, "productId": "p1",
	}))
	body := decodeMap(t, resp)
	if body["accepted"] != true || body["maxAllowed"] != float64(1) {
		t.Fatalf("expected accepted toggle, got %v", body)
	}

	resp = do(handler, http.MethodPost, "/api/rewards/selection", marshal(map[string]any{
		"cartValue": 3000, "selected": []string{"p1"}, "productId": "p2",
	}))
	body = decodeMap(t, resp)
	if body["accepted"] != false {
		t.Fatalf("expected rejection beyond max, got %v", body)
	}

	resp = do(handler, http.MethodPost, "/api/rewards/selection", marshal(map[string]any{
		"cartValue": 100, "selected": []string{}, "productId": "p1",
	}))
	body = decodeMap(t, resp)
	if body["accepted"] != false || body["state"] != "locked" {
		t.Fatalf("expected locked rejection, got %v", body)
	}

	resp = do(handler, http.MethodPost, "/api/rewards/selection", marshal(map[string]any{
		"cartValue": 3000, "productId": "unknown",
	}))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown product, got %d", resp.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	cfg := config.StoreConfig{
		ShopifyStoreID:     "demo.myshopify.com",
		ShopifyStoreName:   "Demo",
		ShopifyAccessToken: "shpat_secret",
		DeploymentMode:     config.ModeDevelopment,
	}
	_, handler := newTestHandler(t, app.Options{Store: cfg})

	resp := do(handler, http.MethodGet, "/api/session", nil)
	body := decodeMap(t, resp)
	if body["isLoading"] != true || body["state"] != string(resolver.StateIdle) {
		t.Fatalf("expected loading idle snapshot, got %v", body)
	}

	resp = do(handler, http.MethodPost, "/api/session/resolve", nil)
	body = decodeMap(t, resp)
	if body["state"] != string(resolver.StateCreated) || body["storeId"] == "" || body["isLoading"] != false {
		t.Fatalf("expected created store, got %v", body)
	}
	if strings.Contains(resp.Body.String(), "shpat_secret") {
		t.Fatalf("token leaked: %s", resp.Body.String())
	}
	storeID := body["storeId"]

	resp = do(handler, http.MethodPost, "/api/session/resolve", nil)
	body = decodeMap(t, resp)
	if body["state"] != string(resolver.StateFound) || body["storeId"] != storeID {
		t.Fatalf("expected fetched store on second resolve, got %v", body)
	}

	resp = do(handler, http.MethodGet, "/api/session", nil)
	if decodeMap(t, resp)["storeId"] != storeID {
		t.Fatalf("snapshot should carry the resolved id")
	}
}

func TestSessionReportsConfigurationError(t *testing.T) {
	cfg := config.StoreConfig{ShopifyStoreID: "demo.myshopify.com", DeploymentMode: config.ModeDevelopment}
	_, handler := newTestHandler(t, app.Options{Store: cfg})

	resp := do(handler, http.MethodPost, "/api/session/resolve", nil)
	body := decodeMap(t, resp)
	if body["errorKind"] != string(resolver.KindConfiguration) || body["state"] != string(resolver.StateFailed) {
		t.Fatalf("expected configuration error, got %v", body)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, ".env") {
		t.Fatalf("expected development remediation message, got %q", msg)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, handler := newTestHandler(t, app.Options{})

	resp := do(handler, http.MethodGet, "/healthz", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if decodeMap(t, resp)["status"] != "ok" {
		t.Fatalf("unexpected health body %s", resp.Body.String())
	}

	do(handler, http.MethodGet, "/api/stores", nil)
	resp = do(handler, http.MethodGet, "/metrics", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `cartrewards_http_requests_total{method="GET",path="/api/stores",status="200"}`) {
		t.Fatalf("expected route template metric in output")
	}
}

func TestRoutingFallbacks(t *testing.T) {
	_, handler := newTestHandler(t, app.Options{})

	resp := do(handler, http.MethodGet, "/api/unknown", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	resp = do(handler, http.MethodDelete, "/api/stores", nil)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}

func TestCORSAndTraceHeaders(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{}, logger.Discard())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler := NewHandler(application, Options{
		AllowedOrigins: []string{"*.myshopify.com"},
		Logger:         logger.Discard(),
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/rewards/eligibility", nil)
	req.Header.Set("Origin", "https://demo.myshopify.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "https://demo.myshopify.com" {
		t.Fatalf("missing allow origin header")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/stores", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("X-Trace-ID", "trace-123")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow origin for foreign site")
	}
	if resp.Header().Get("X-Trace-ID") != "trace-123" {
		t.Fatalf("expected trace id echoed, got %q", resp.Header().Get("X-Trace-ID"))
	}
}

func TestRateLimit(t *testing.T) {
	application, err := app.New(app.Stores{}, app.Options{}, logger.Discard())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	handler := NewHandler(application, Options{
		RateLimiter: middleware.NewRateLimiter(1, 1, logger.Discard()),
		Logger:      logger.Discard(),
	})

	first := do(handler, http.MethodGet, "/api/stores", nil)
	second := do(handler, http.MethodGet, "/api/stores", nil)
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d then %d", first.Code, second.Code)
	}
}

func TestRewardSessionWebsocket(t *testing.T) {
	catalog := reward.Catalog{
		Table:    reward.DefaultTable(),
		Products: []reward.Product{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}},
	}
	_, handler := newTestHandler(t, app.Options{Catalog: catalog})
	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/rewards/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	frame := readFrame(t, conn)
	if frame["type"] != "state" || frame["state"] != "locked" {
		t.Fatalf("expected initial locked state, got %v", frame)
	}

	send(t, conn, map[string]any{"type": "toggle", "productId": "p1"})
	frame = readFrame(t, conn)
	if frame["accepted"] != false {
		t.Fatalf("expected toggle rejected while locked, got %v", frame)
	}

	send(t, conn, map[string]any{"type": "cart", "cartValue": 4000})
	frame = readFrame(t, conn)
	if frame["state"] != "selecting" || frame["maxAllowed"] != float64(2) {
		t.Fatalf("expected selecting with 2 allowed, got %v", frame)
	}

	for _, id := range []string{"p1", "p2"} {
		send(t, conn, map[string]any{"type": "toggle", "productId": id})
		if frame = readFrame(t, conn); frame["accepted"] != true {
			t.Fatalf("expected %s accepted, got %v", id, frame)
		}
	}
	send(t, conn, map[string]any{"type": "toggle", "productId": "p3"})
	if frame = readFrame(t, conn); frame["accepted"] != false {
		t.Fatalf("expected p3 rejected at max, got %v", frame)
	}

	send(t, conn, map[string]any{"type": "cart", "cartValue": 3000})
	frame = readFrame(t, conn)
	selected, _ := frame["selected"].([]any)
	if len(selected) != 1 || selected[0] != "p1" {
		t.Fatalf("expected selection trimmed to [p1], got %v", frame["selected"])
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame = readFrame(t, conn); frame["type"] != "error" {
		t.Fatalf("expected error frame, got %v", frame)
	}
	send(t, conn, map[string]any{"type": "dance"})
	if frame = readFrame(t, conn); frame["type"] != "error" {
		t.Fatalf("expected error frame for unknown type, got %v", frame)
	}
	send(t, conn, map[string]any{"type": "toggle", "productId": "nope"})
	if frame = readFrame(t, conn); frame["type"] != "error" {
		t.Fatalf("expected error frame for unknown product, got %v", frame)
	}
}

func do(handler http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func decodeMap(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", resp.Body.String(), err)
	}
	return out
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	return frame
}

func storeInput(shopifyStoreID string) store.CreateInput {
	return store.CreateInput{ShopifyStoreID: shopifyStoreID, StoreName: "Demo", AccessToken: "shpat_secret"}
}
