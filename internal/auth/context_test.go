package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
)

func TestDelegatedTokenFromContext(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		wantToken string
		wantOK    bool
	}{
		{
			name:   "unbound context",
			ctx:    context.Background(),
			wantOK: false,
		},
		{
			name:   "nil context",
			ctx:    nil,
			wantOK: false,
		},
		{
			name:      "bound token",
			ctx:       WithDelegatedToken(context.Background(), "tok-123"),
			wantToken: "tok-123",
			wantOK:    true,
		},
		{
			name:   "empty token treated as absent",
			ctx:    WithDelegatedToken(context.Background(), ""),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := DelegatedTokenFromContext(tt.ctx)
			if ok != tt.wantOK {
				t.Errorf("DelegatedTokenFromContext() ok = %v, want %v", ok, tt.wantOK)
			}
			if token != tt.wantToken {
				t.Errorf("DelegatedTokenFromContext() token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

// TestDelegatedTokenIsolation verifies that concurrently bound tokens never
// bleed between request contexts.
func TestDelegatedTokenIsolation(t *testing.T) {
	const requests = 100

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			want := fmt.Sprintf("token-%d", i)
			ctx := context.Background()
			if i%10 != 0 {
				// Every tenth request arrives without a token.
				ctx = WithDelegatedToken(ctx, want)
			}

			got, ok := DelegatedTokenFromContext(ctx)
			if i%10 == 0 {
				if ok {
					t.Errorf("request %d: expected no token, got %q", i, got)
				}
				return
			}
			if !ok || got != want {
				t.Errorf("request %d: got token %q (ok=%v), want %q", i, got, ok, want)
			}
		}(i)
	}
	wg.Wait()
}

func TestHTTPContextFunc(t *testing.T) {
	tests := []struct {
		name      string
		headers   map[string]string
		wantToken string
		wantOK    bool
	}{
		{
			name:   "no header",
			wantOK: false,
		},
		{
			name:      "canonical header",
			headers:   map[string]string{"X-Forwarded-Access-Token": "abc"},
			wantToken: "abc",
			wantOK:    true,
		},
		{
			name:      "lowercase header name",
			headers:   map[string]string{"x-forwarded-access-token": "def"},
			wantToken: "def",
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodPost, "http://localhost/mcp", nil)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			ctx := HTTPContextFunc(context.Background(), r)
			token, ok := DelegatedTokenFromContext(ctx)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}
