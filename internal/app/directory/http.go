package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/cartrewards/service_layer/internal/app/domain/store"
	"github.com/cartrewards/service_layer/internal/httputil"
)

const maxBody = 1 << 20

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPClient talks to a remote store directory over its JSON API.
type HTTPClient struct {
	client *httputil.ServiceClient
}

var (
	_ Directory = (*HTTPClient)(nil)
	_ Lister    = (*HTTPClient)(nil)
)

// NewHTTPClient builds a directory client for the given base URL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("directory base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid directory base url: %w", err)
	}
	return &HTTPClient{
		client: httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL:    base,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		}),
	}, nil
}

// GetStore fetches GET /api/stores/{shopifyStoreId}.
func (c *HTTPClient) GetStore(ctx context.Context, shopifyStoreID string) (store.Record, error) {
	resp, err := c.client.Get(ctx, "/api/stores/"+url.PathEscape(shopifyStoreID))
	if err != nil {
		return store.Record{}, fmt.Errorf("fetch store: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, maxBody)
	if err != nil {
		return store.Record{}, fmt.Errorf("fetch store: read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return store.Record{}, ErrStoreNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return store.Record{}, statusError("fetch store", resp.StatusCode, body)
	}
	return decodeRecord(body)
}

// CreateStore posts to /api/stores.
func (c *HTTPClient) CreateStore(ctx context.Context, in store.CreateInput) (store.Record, error) {
	resp, err := c.client.Post(ctx, "/api/stores", in)
	if err != nil {
		return store.Record{}, fmt.Errorf("create store: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, maxBody)
	if err != nil {
		return store.Record{}, fmt.Errorf("create store: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return store.Record{}, statusError("create store", resp.StatusCode, body)
	}
	return decodeRecord(body)
}

// ListStores fetches GET /api/stores.
func (c *HTTPClient) ListStores(ctx context.Context) ([]store.Record, error) {
	resp, err := c.client.Get(ctx, "/api/stores")
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, maxBody)
	if err != nil {
		return nil, fmt.Errorf("list stores: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError("list stores", resp.StatusCode, body)
	}

	list := gjson.ParseBytes(body)
	for _, key := range []string{"stores", "data"} {
		if nested := list.Get(key); nested.IsArray() {
			list = nested
			break
		}
	}
	if !list.IsArray() {
		return nil, errors.New("list stores: malformed response body")
	}

	var out []store.Record
	for _, item := range list.Array() {
		rec, err := decodeRecord([]byte(item.Raw))
		if err != nil {
			return nil, fmt.Errorf("list stores: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// decodeRecord accepts a bare record or one wrapped in a "store" or "data"
// envelope.
func decodeRecord(body []byte) (store.Record, error) {
	if !gjson.ValidBytes(body) {
		return store.Record{}, errors.New("malformed store response: invalid json")
	}
	doc := gjson.ParseBytes(body)
	for _, key := range []string{"store", "data"} {
		if nested := doc.Get(key); nested.IsObject() {
			doc = nested
			break
		}
	}
	if !doc.IsObject() {
		return store.Record{}, errors.New("malformed store response: expected object")
	}
	if strings.TrimSpace(doc.Get("id").String()) == "" {
		return store.Record{}, errors.New("malformed store response: missing id")
	}

	var rec store.Record
	if err := json.Unmarshal([]byte(doc.Raw), &rec); err != nil {
		return store.Record{}, fmt.Errorf("malformed store response: %w", err)
	}
	return rec, nil
}

func statusError(op string, status int, body []byte) error {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, key := range []string{"error", "message", "error.message"} {
			if v := gjson.GetBytes(body, key); v.Type == gjson.String && v.String() != "" {
				msg = v.String()
				break
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 256 {
			msg = msg[:256] + "...(truncated)"
		}
	}
	if msg == "" {
		return fmt.Errorf("%s: status %d", op, status)
	}
	return fmt.Errorf("%s: status %d: %s", op, status, msg)
}
