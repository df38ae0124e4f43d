package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cartrewards/service_layer/internal/app/metrics"
)

// MetricsMiddleware records HTTP metrics labelled by route template.
func MetricsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return metrics.InstrumentHandler(next, RouteTemplate)
	}
}

// RouteTemplate returns the matched mux path template, or "" when the
// request did not match a route.
func RouteTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tpl
}
