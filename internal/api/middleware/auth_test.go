package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tradeterm/pkg/crypto"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestPassphrase(t *testing.T) {
	hash, err := crypto.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	t.Run("empty hash disables check", func(t *testing.T) {
		guard := Passphrase("")
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil)
		w := httptest.NewRecorder()

		guard(okHandler()).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("accepts correct passphrase", func(t *testing.T) {
		guard := Passphrase(hash)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil)
		req.Header.Set("X-Terminal-Passphrase", "correct horse")
		w := httptest.NewRecorder()

		guard(okHandler()).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("rejects wrong passphrase", func(t *testing.T) {
		guard := Passphrase(hash)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil)
		req.Header.Set("X-Terminal-Passphrase", "wrong")
		w := httptest.NewRecorder()

		guard(okHandler()).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("rejects missing header", func(t *testing.T) {
		guard := Passphrase(hash)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil)
		w := httptest.NewRecorder()

		guard(okHandler()).ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})
}
