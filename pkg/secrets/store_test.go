package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		wantErr     bool
		errContains string
	}{
		{name: "default", provider: ""},
		{name: "memory", provider: "memory"},
		{name: "env", provider: "env"},
		{name: "vault", provider: "vault"},
		{name: "unknown provider", provider: "k8s", wantErr: true, errContains: "unsupported secret provider"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := NewStore(Config{Provider: tc.provider, Address: "http://127.0.0.1:1"})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tc.errContains) {
					t.Fatalf("error = %q, want contains %q", err.Error(), tc.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store == nil {
				t.Fatalf("store should not be nil")
			}
		})
	}
}

func TestMemoryAndEnvStoreBasicContract(t *testing.T) {
	ctx := context.Background()
	for _, s := range []Store{NewMemoryStore(nil), NewEnvStore()} {
		if err := s.Set(ctx, "LOVE_SECRET_TEST_KEY", "value"); err != nil {
			t.Fatalf("set secret failed: %v", err)
		}
		got, err := s.Get(ctx, "LOVE_SECRET_TEST_KEY")
		if err != nil {
			t.Fatalf("get secret failed: %v", err)
		}
		if got != "value" {
			t.Fatalf("get secret = %q, want value", got)
		}
		if err := s.Delete(ctx, "LOVE_SECRET_TEST_KEY"); err != nil {
			t.Fatalf("delete secret failed: %v", err)
		}
		if _, err := s.Get(ctx, "LOVE_SECRET_TEST_KEY"); err == nil {
			t.Fatalf("expected error after delete")
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[string]string{"smtp_auth": "abc123"})

	got, err := Resolve(ctx, store, "plain-value")
	if err != nil || got != "plain-value" {
		t.Fatalf("plain value: got %q, %v", got, err)
	}
	got, err = Resolve(ctx, store, "secret:smtp_auth")
	if err != nil || got != "abc123" {
		t.Fatalf("secret ref: got %q, %v", got, err)
	}
	if _, err := Resolve(ctx, store, "secret:missing"); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := Resolve(ctx, nil, "secret:smtp_auth"); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestVaultStore_GetKVv2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/love/pixabay" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": map[string]any{"value": "px-key"},
			},
		})
	}))
	defer srv.Close()

	store, err := NewVaultStore(VaultConfig{Address: srv.URL, Token: "t", PathPrefix: "secret/data/love"})
	if err != nil {
		t.Fatalf("NewVaultStore: %v", err)
	}
	got, err := store.Get(context.Background(), "pixabay")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "px-key" {
		t.Fatalf("Get = %q, want px-key", got)
	}
	if _, err := store.Get(context.Background(), "absent"); err == nil {
		t.Fatal("expected error for absent secret")
	}
}
