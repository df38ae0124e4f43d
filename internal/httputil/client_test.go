package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	svcerrors "github.com/cartrewards/service_layer/internal/errors"
	"github.com/cartrewards/service_layer/pkg/logger"
)

// =============================================================================
// ServiceClient Tests
// =============================================================================

func TestNewServiceClient(t *testing.T) {
	client := NewServiceClient(ServiceClientConfig{
		BaseURL:    "http://localhost:8080/",
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	})

	if client.BaseURL() != "http://localhost:8080" {
		t.Errorf("baseURL = %s, want http://localhost:8080", client.BaseURL())
	}
	if client.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", client.maxRetries)
	}
}

func TestNewServiceClient_Defaults(t *testing.T) {
	client := NewServiceClient(ServiceClientConfig{BaseURL: "http://localhost:8080"})
	if client.maxRetries != 2 {
		t.Errorf("default maxRetries = %d, want 2", client.maxRetries)
	}
	if NewServiceClient(ServiceClientConfig{MaxRetries: -1}).maxRetries != 0 {
		t.Errorf("negative retries should disable retrying")
	}
}

func TestServiceClient_GetHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get(TraceHeader); got != "trace-1" {
			t.Errorf("trace header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewServiceClient(ServiceClientConfig{BaseURL: server.URL, APIKey: "secret"})
	ctx := logger.WithTraceID(context.Background(), "trace-1")

	resp, err := client.Get(ctx, "/test")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var out map[string]string
	if err := DecodeResponse(resp, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "ok" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestServiceClient_RetriesOnlyGets(t *testing.T) {
	var gets, posts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if atomic.AddInt32(&gets, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		atomic.AddInt32(&posts, 1)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewServiceClient(ServiceClientConfig{BaseURL: server.URL})

	resp, err := client.Get(context.Background(), "/x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || atomic.LoadInt32(&gets) != 2 {
		t.Fatalf("expected one retry, status=%d gets=%d", resp.StatusCode, gets)
	}

	resp, err = client.Post(context.Background(), "/x", map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if atomic.LoadInt32(&posts) != 1 {
		t.Fatalf("post must not be retried, got %d attempts", posts)
	}
}

func TestDecodeResponse_Error(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusBadRequest)
	rec.WriteString(`{"error":"bad"}`)

	err := DecodeResponse(rec.Result(), nil)
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestReadAllWithLimit(t *testing.T) {
	body, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil || !truncated || string(body) != "abcd" {
		t.Fatalf("got %q truncated=%v err=%v", body, truncated, err)
	}
	if _, err := ReadAllStrict(strings.NewReader("abcdef"), 4); err == nil {
		t.Fatalf("expected strict read to fail")
	}
	if _, _, err := ReadAllWithLimit(strings.NewReader(""), 0); err == nil {
		t.Fatalf("expected invalid limit error")
	}
}

// =============================================================================
// Response helper Tests
// =============================================================================

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, svcerrors.NotFound("store not found"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "store not found" || body["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected body %v", body)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("plain errors should map to 500, got %d", rec.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		A int `json:"a"`
	}
	if err := DecodeJSON(strings.NewReader(`{"a":1}`), &dst); err != nil || dst.A != 1 {
		t.Fatalf("decode: %v %+v", err, dst)
	}
	if err := DecodeJSON(strings.NewReader(`{"b":1}`), &dst); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if err := DecodeJSON(strings.NewReader(``), &dst); err == nil {
		t.Fatalf("expected empty body error")
	}
	if err := DecodeJSON(strings.NewReader(`{"a":1}{"a":2}`), &dst); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if ClientIP(r) != "10.0.0.1" {
		t.Fatalf("got %q", ClientIP(r))
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ClientIP(r) != "203.0.113.9" {
		t.Fatalf("got %q", ClientIP(r))
	}
}
