package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	svcerrors "github.com/cartrewards/service_layer/internal/errors"
)

// WriteJSON writes payload as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError writes a {"error","code"} body. ServiceErrors keep their own
// status and code; other errors become 500s.
func WriteError(w http.ResponseWriter, err error) {
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = svcerrors.Internal("internal error", err)
	}
	body := map[string]interface{}{
		"error": svcErr.Message,
		"code":  svcErr.Code,
	}
	if len(svcErr.Details) > 0 {
		body["details"] = svcErr.Details
	}
	WriteJSON(w, svcErr.HTTPStatus, body)
}

// DecodeJSON decodes a bounded request body, rejecting unknown fields and
// trailing data.
func DecodeJSON(r io.Reader, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ClientIP returns the best-effort client address for rate limiting.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 && !strings.HasSuffix(host, "]") {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}
