package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func operatorToken(t *testing.T, mgr *JWTManager, operator string) string {
	t.Helper()
	tok, err := mgr.Exchange("admin", operator)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	return tok.AccessToken
}

func TestMiddlewareValidToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", "admin")
	token := operatorToken(t, mgr, "ops-42")

	var capturedOperator string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedOperator = OperatorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := Middleware(mgr)(inner)

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if capturedOperator != "ops-42" {
		t.Errorf("expected operator=ops-42, got %s", capturedOperator)
	}
}

func TestMiddlewareMissingHeader(t *testing.T) {
	mgr := NewJWTManager("test-secret", "admin")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	handler := Middleware(mgr)(inner)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareBadFormat(t *testing.T) {
	mgr := NewJWTManager("test-secret", "admin")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	handler := Middleware(mgr)(inner)

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"bearer only", "Bearer"},
		{"empty value", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestMiddlewareInvalidToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", "admin")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})

	handler := Middleware(mgr)(inner)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareCaseInsensitiveBearer(t *testing.T) {
	mgr := NewJWTManager("test-secret", "admin")
	token := operatorToken(t, mgr, "ops-1")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := Middleware(mgr)(inner)
	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for lowercase bearer, got %d", rec.Code)
	}
}

func TestOperatorFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if op := OperatorFromContext(req.Context()); op != "" {
		t.Errorf("expected empty operator from context without auth, got %s", op)
	}
}
