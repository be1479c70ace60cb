// Package contract validates API responses against the OpenAPI document.
package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// testConfig holds test configuration.
type testConfig struct {
	BaseURL     string
	AccessToken string
	SpecPath    string
}

// getConfig returns test configuration from environment.
func getConfig(t *testing.T) *testConfig {
	t.Helper()

	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	specPath := os.Getenv("OPENAPI_SPEC_PATH")
	if specPath == "" {
		wd, _ := os.Getwd()
		specPath = filepath.Join(wd, "..", "..", "docs", "api", "openapi.yaml")
	}

	return &testConfig{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: os.Getenv("TEST_ACCESS_TOKEN"),
		SpecPath:    specPath,
	}
}

// loadSpec loads and validates the OpenAPI document. A non-empty serverURL replaces
// the documented servers so routes match a test server.
func loadSpec(t *testing.T, path, serverURL string) (*openapi3.T, routers.Router) {
	t.Helper()

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	spec, err := loader.LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load OpenAPI spec from %s: %v", path, err)
	}

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	if serverURL != "" {
		spec.Servers = openapi3.Servers{{URL: serverURL}}
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		t.Fatalf("Failed to create router from spec: %v", err)
	}

	return spec, router
}

// target is a running API the checks below talk to.
type target struct {
	baseURL string
	token   string
	router  routers.Router
	client  *http.Client
}

func newLiveTarget(t *testing.T) *target {
	t.Helper()

	cfg := getConfig(t)
	_, router := loadSpec(t, cfg.SpecPath, cfg.BaseURL)
	return &target{
		baseURL: cfg.BaseURL,
		token:   cfg.AccessToken,
		router:  router,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// call sends a request and returns the response with its body already read.
// A live target that is not reachable skips the test.
func (tg *target) call(t *testing.T, method, path string, body any, withToken bool) (*http.Request, *http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tg.baseURL+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withToken && tg.token != "" {
		req.Header.Set("Authorization", "Bearer "+tg.token)
	}

	resp, err := tg.client.Do(req)
	if err != nil {
		t.Skipf("Server not available: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return req, resp, raw
}

// validate checks a response against the operation the request maps to.
func (tg *target) validate(t *testing.T, req *http.Request, resp *http.Response, body []byte) {
	t.Helper()

	route, pathParams, err := tg.router.FindRoute(req)
	if err != nil {
		t.Fatalf("Could not find route in spec for %s %s: %v", req.Method, req.URL.Path, err)
	}

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}

	if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
		t.Errorf("Response validation failed for %s %s (%d): %v\nBody: %s",
			req.Method, req.URL.Path, resp.StatusCode, err, body)
	}
}

// TestOpenAPISpecValid ensures the OpenAPI spec is valid.
func TestOpenAPISpecValid(t *testing.T) {
	cfg := getConfig(t)
	_, _ = loadSpec(t, cfg.SpecPath, "")
}

// TestDocumentedPaths verifies the document covers every route the router serves.
func TestDocumentedPaths(t *testing.T) {
	cfg := getConfig(t)
	spec, _ := loadSpec(t, cfg.SpecPath, "")

	expected := map[string][]string{
		"/":                          {http.MethodGet},
		"/healthz":                   {http.MethodGet},
		"/readyz":                    {http.MethodGet},
		"/metrics":                   {http.MethodGet},
		"/api/v1/auth/register":      {http.MethodPost},
		"/api/v1/auth/login":         {http.MethodPost},
		"/api/v1/auth/forgot":        {http.MethodPost},
		"/api/v1/auth/reset/{token}": {http.MethodPost},
		"/api/v1/auth/profile":       {http.MethodGet},
		"/api/v1/credits/":           {http.MethodGet, http.MethodPost},
		"/api/v1/credits/distinct":   {http.MethodGet},
		"/api/v1/credits/{id}":       {http.MethodGet, http.MethodPut, http.MethodDelete},
	}

	for path, methods := range expected {
		item := spec.Paths.Find(path)
		if item == nil {
			t.Errorf("Expected path %s not found in spec", path)
			continue
		}
		for _, method := range methods {
			if item.GetOperation(method) == nil {
				t.Errorf("Expected operation %s %s not found in spec", method, path)
			}
		}
	}

	if got, want := spec.Paths.Len(), len(expected); got != want {
		t.Errorf("spec documents %d paths, router serves %d", got, want)
	}
}

// TestLiveEndpoints validates a running server when one is reachable at API_BASE_URL.
func TestLiveEndpoints(t *testing.T) {
	tg := newLiveTarget(t)

	for _, path := range []string{"/", "/healthz", "/readyz", "/api/v1/credits/distinct"} {
		t.Run(path, func(t *testing.T) {
			req, resp, body := tg.call(t, http.MethodGet, path, nil, false)
			if resp.StatusCode == http.StatusNotFound {
				t.Fatalf("GET %s returned 404", path)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
				t.Errorf("Expected application/json Content-Type for %s, got: %s", path, ct)
			}
			tg.validate(t, req, resp, body)
		})
	}

	t.Run("Unauthorized", func(t *testing.T) {
		req, resp, body := tg.call(t, http.MethodGet, "/api/v1/credits/", nil, false)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
		validateErrorResponse(t, resp, body)
		tg.validate(t, req, resp, body)
	})

	t.Run("AuthenticatedList", func(t *testing.T) {
		if tg.token == "" {
			t.Skip("TEST_ACCESS_TOKEN not set")
		}
		req, resp, body := tg.call(t, http.MethodGet, "/api/v1/credits/?per_page=5", nil, true)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
		}
		tg.validate(t, req, resp, body)
	})

	t.Run("NotFound", func(t *testing.T) {
		if tg.token == "" {
			t.Skip("TEST_ACCESS_TOKEN not set")
		}
		req, resp, body := tg.call(t, http.MethodGet, "/api/v1/credits/999999999", nil, true)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
		validateErrorResponse(t, resp, body)
		tg.validate(t, req, resp, body)
	})
}

// validateErrorResponse checks that error responses have required fields.
func validateErrorResponse(t *testing.T, resp *http.Response, body []byte) {
	t.Helper()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("Error response Content-Type should be application/json, got: %s", contentType)
		return
	}

	var errorResp struct {
		Msg  string `json:"msg"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &errorResp); err != nil {
		t.Errorf("Failed to parse error response as JSON: %v\nBody: %s", err, string(body))
		return
	}

	if errorResp.Msg == "" {
		t.Errorf("Error response missing 'msg' field. Body: %s", string(body))
	}
	if errorResp.Code == "" {
		t.Errorf("Error response missing 'code' field. Body: %s", string(body))
	}
}
