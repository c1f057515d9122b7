package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
)

func TestDoBodyJSONRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(5*time.Second, 2)
	var out struct {
		OK bool `json:"ok"`
	}
	_, err := DoBodyJSON(context.Background(), c, http.MethodGet, srv.URL, nil, nil, &out)
	if err != nil {
		t.Fatalf("DoBodyJSON failed: %v", err)
	}
	if !out.OK || attempts != 2 {
		t.Fatalf("expected retry then success, got attempts=%d out=%+v", attempts, out)
	}
}

func TestDoBodyJSONPersistentRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(5*time.Second, 1)
	_, err := DoBodyJSON(context.Background(), c, http.MethodGet, srv.URL, nil, nil, nil)
	if !clierr.IsCode(err, clierr.CodeRateLimited) {
		t.Fatalf("expected rate limited code, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("rate limits should be retried, got %d attempts", attempts)
	}
}

func TestDoBodyJSONAuthFailureNoRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(5*time.Second, 3)
	_, err := DoBodyJSON(context.Background(), c, http.MethodGet, srv.URL, nil, nil, nil)
	if !clierr.IsCode(err, clierr.CodeAuth) {
		t.Fatalf("expected auth code, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("auth failures must not be retried, got %d attempts", attempts)
	}
}

func TestDoBodyJSONSendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing authorization header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type")
		}
		if r.Header.Get("User-Agent") != "lenderctl/1.0" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(5*time.Second, 0)
	headers := map[string]string{"Authorization": "Bearer token"}
	if _, err := DoBodyJSON(context.Background(), c, http.MethodPost, srv.URL, []byte(`{"x":1}`), headers, nil); err != nil {
		t.Fatalf("DoBodyJSON failed: %v", err)
	}
}

func TestDoBodyJSONDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(5*time.Second, 0)
	var out map[string]any
	_, err := DoBodyJSON(context.Background(), c, http.MethodGet, srv.URL, nil, nil, &out)
	if !clierr.IsCode(err, clierr.CodeUnavailable) {
		t.Fatalf("expected unavailable code for bad JSON, got %v", err)
	}
}
