// Package http sends requests to echo servers in tests.
package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// Get makes a context of a GET request to target, for calling a handler directly.
func Get(e *echo.Echo, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	return e.NewContext(req, resp), resp
}

// Serve sends a GET request to target through the router of e, with its middlewares.
func Serve(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	e.ServeHTTP(resp, req)
	return resp
}

// JSON decodes the response body as T. The test fails if it cannot.
func JSON[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(resp.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, resp.Body)
	}
	return v
}
