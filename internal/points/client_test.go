package points

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clierr "github.com/keelerlabs/lenderctl/internal/errors"
	"github.com/keelerlabs/lenderctl/internal/httpx"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/points/0x77" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"address": "0x77",
			"points": {"total": 120.5, "lend": 100, "borrow": 20.5},
			"rank": 42,
			"updated_at": "2026-08-01T00:00:00Z"
		}`))
	}))
	defer srv.Close()

	c := New(httpx.New(5*time.Second, 0), srv.URL, "secret")
	got, err := c.Fetch(context.Background(), "0x77")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.Address != "0x77" || got.TotalPoints != 120.5 || got.LendPoints != 100 || got.BorrowPoints != 20.5 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if got.Rank != 42 || got.UpdatedAt != "2026-08-01T00:00:00Z" {
		t.Fatalf("rank or timestamp lost: %+v", got)
	}
}

func TestFetchNoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected authorization header")
		}
		_, _ = w.Write([]byte(`{"address":"0x77","points":{},"rank":0}`))
	}))
	defer srv.Close()

	c := New(httpx.New(5*time.Second, 0), srv.URL, "")
	if _, err := c.Fetch(context.Background(), "0x77"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestFetchRequiresBaseURL(t *testing.T) {
	c := New(httpx.New(time.Second, 0), "", "")
	_, err := c.Fetch(context.Background(), "0x77")
	if !clierr.IsCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}
