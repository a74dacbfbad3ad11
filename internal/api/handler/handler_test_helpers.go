package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ibhelm/service-agent/internal/config"
)

// newRequest creates a new HTTP request with an optional JSON body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// testConfig is a two-service registry for handler tests.
func testConfig() *config.Config {
	return &config.Config{
		Services: map[string]config.Service{
			"mcp":      {Dir: "ibhelm-mcp", Compose: []string{"docker-compose.yml"}},
			"supabase": {Dir: "supabase/docker", Compose: []string{"docker-compose.yml"}, MultiContainer: true},
		},
		Categories: []string{"shared", "mcp", "supabase"},
	}
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
