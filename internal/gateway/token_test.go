package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/presidence-ga/iasted/internal/gateway"
	"github.com/presidence-ga/iasted/pkg/provider/realtime"
)

func TestTokenHandler_MintsFreshCredential(t *testing.T) {
	t.Parallel()

	calls := 0
	src := realtime.TokenSourceFunc(func(context.Context) (realtime.Credential, error) {
		calls++
		return realtime.Credential{
			Secret:    "ek_test",
			ExpiresAt: time.Now().Add(time.Minute),
		}, nil
	})
	h := gateway.TokenHandler(src, nil)

	for want := 1; want <= 2; want++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/realtime/token", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if calls != want {
			t.Fatalf("mint calls = %d, want %d (one mint per request)", calls, want)
		}

		var body struct {
			Secret    string     `json:"secret"`
			ExpiresAt *time.Time `json:"expires_at"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Secret != "ek_test" {
			t.Fatalf("secret = %q", body.Secret)
		}
		if body.ExpiresAt == nil {
			t.Fatal("expires_at missing")
		}
		if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
			t.Fatalf("Cache-Control = %q, want no-store", cc)
		}
	}
}

func TestTokenHandler_SignedURLCredential(t *testing.T) {
	t.Parallel()

	src := realtime.TokenSourceFunc(func(context.Context) (realtime.Credential, error) {
		return realtime.Credential{URL: "wss://vendor.example/conv?token=abc"}, nil
	})
	h := gateway.TokenHandler(src, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/realtime/token", nil))

	var body struct {
		URL       string `json:"url"`
		Secret    string `json:"secret"`
		ExpiresAt any    `json:"expires_at"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.URL != "wss://vendor.example/conv?token=abc" {
		t.Fatalf("url = %q", body.URL)
	}
	if body.Secret != "" || body.ExpiresAt != nil {
		t.Fatalf("unset fields leaked into response: %+v", body)
	}
}

func TestTokenHandler_MintFailure(t *testing.T) {
	t.Parallel()

	src := realtime.TokenSourceFunc(func(context.Context) (realtime.Credential, error) {
		return realtime.Credential{}, errors.New("vendor down")
	})
	h := gateway.TokenHandler(src, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/realtime/token", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestTokenHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	src := realtime.TokenSourceFunc(func(context.Context) (realtime.Credential, error) {
		t.Fatal("token source must not be called")
		return realtime.Credential{}, nil
	})
	h := gateway.TokenHandler(src, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/realtime/token", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
