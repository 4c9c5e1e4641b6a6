package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/fsf-api-client/internal/testutil"
	"github.com/Sternrassler/fsf-api-client/pkg/client"
	"github.com/Sternrassler/fsf-api-client/pkg/endpoint"
)

// envFunc builds a getenv replacement from a map.
func envFunc(env map[string]string) func(string) string {
	return func(key string) string { return env[key] }
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		env         map[string]string
		expectError bool
		check       func(t *testing.T, o options)
	}{
		{
			name: "env defaults",
			args: []string{"-product", "location.get_detail", "-search-items", "1"},
			env: map[string]string{
				"FSF_API_KEY":  "from-env",
				"FSF_BASE_URL": "http://localhost:1234",
				"LOG_LEVEL":    "debug",
			},
			check: func(t *testing.T, o options) {
				if o.apiKey != "from-env" || o.baseURL != "http://localhost:1234" || o.logLevel != "debug" {
					t.Errorf("options = %+v", o)
				}
				if o.version != "v1" || o.connectionLimit != 100 || o.rateLimit != 4990 {
					t.Errorf("defaults not applied: %+v", o)
				}
			},
		},
		{
			name: "flags override env",
			args: []string{"-product", "location.get_detail", "-search-items", "1", "-api-key", "from-flag", "-rate-period", "30s"},
			env:  map[string]string{"FSF_API_KEY": "from-env"},
			check: func(t *testing.T, o options) {
				if o.apiKey != "from-flag" {
					t.Errorf("apiKey = %q, want from-flag", o.apiKey)
				}
				if o.ratePeriod.String() != "30s" {
					t.Errorf("ratePeriod = %s, want 30s", o.ratePeriod)
				}
			},
		},
		{
			name:        "missing product",
			args:        []string{"-search-items", "1"},
			expectError: true,
		},
		{
			name:        "missing search items",
			args:        []string{"-product", "location.get_detail"},
			expectError: true,
		},
		{
			name:        "unknown flag",
			args:        []string{"-nope"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseOptions(tt.args, envFunc(tt.env))
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.check(t, o)
		})
	}
}

func TestBuildProduct(t *testing.T) {
	o := options{
		product:      "tile.get_probability_depth",
		year:         2050,
		returnPeriod: 100,
		extra:        "depths:[30,60]",
	}

	product, err := o.buildProduct()
	if err != nil {
		t.Fatalf("buildProduct() error = %v", err)
	}
	if !product.IsTile() || product.Tile.Year != 2050 || product.Tile.ReturnPeriod != 100 {
		t.Errorf("product = %+v, tile = %+v", product, product.Tile)
	}
	if got := product.Extra.Get("depths"); got != "30,60" {
		t.Errorf("depths = %q, want 30,60", got)
	}

	if _, err := (options{product: "nope.get_nothing"}).buildProduct(); !errors.Is(err, endpoint.ErrInvalidArgument) {
		t.Errorf("unknown product error = %v, want ErrInvalidArgument", err)
	}
}

func TestReadKeys_FileAndFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.txt")
	if err := os.WriteFile(path, []byte("390000227\n\n(40.7, -74.0)\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	o := options{keys: "12", file: path}
	keys, err := o.readKeys(strings.NewReader(""))
	if err != nil {
		t.Fatalf("readKeys() error = %v", err)
	}

	want := []endpoint.Key{endpoint.ID(12), endpoint.ID(390000227), endpoint.Coordinate(40.7, -74)}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestRun_WritesJSONLines(t *testing.T) {
	mock := testutil.NewMockFSF()
	defer mock.Close()
	mock.Script("/v1/location/detail/property/190836953", testutil.NewJSONResponse(map[string]any{
		"fsid":  190836953,
		"state": "NY",
	}))

	env := envFunc(map[string]string{
		"FSF_API_KEY":  "test-key",
		"FSF_BASE_URL": mock.URL(),
		"LOG_LEVEL":    "disabled",
	})

	var stdout bytes.Buffer
	args := []string{"-product", "location.get_detail", "-location", "property", "-file", "-"}
	err := run(context.Background(), args, strings.NewReader("190836953\n0\n"), &stdout, env)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), stdout.String())
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 is not JSON: %v", err)
	}

	if first["fsid"] != float64(190836953) || first["state"] != "NY" {
		t.Errorf("line 1 = %v", first)
	}
	if second["fsid"] != float64(0) || second["validId"] != false || second["error"] != "Not Found" {
		t.Errorf("line 2 = %v", second)
	}
}

func TestRun_SystemicErrorFails(t *testing.T) {
	mock := testutil.NewMockFSF()
	defer mock.Close()
	mock.SetFallback(testutil.NewErrorResponse(http.StatusUnauthorized, "Invalid API key"))

	env := envFunc(map[string]string{
		"FSF_API_KEY":  "bad-key",
		"FSF_BASE_URL": mock.URL(),
		"LOG_LEVEL":    "disabled",
	})

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-product", "location.get_detail", "-location", "property", "-search-items", "1;2"}, nil, &stdout, env)
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Fatalf("run() error = %v, want ErrUnauthorized", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("no results expected on a failed batch, got %q", stdout.String())
	}
}

func TestRun_MissingAPIKey(t *testing.T) {
	env := envFunc(map[string]string{"LOG_LEVEL": "disabled"})

	err := run(context.Background(), []string{"-product", "location.get_detail", "-location", "property", "-search-items", "1"}, nil, io.Discard, env)
	if !errors.Is(err, client.ErrMissingAPIKey) {
		t.Errorf("run() error = %v, want ErrMissingAPIKey", err)
	}
}
