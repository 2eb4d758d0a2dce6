package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	token, err := issuer.GenerateToken(42, "alice")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != 42 || claims.Login != "alice" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestValidateErrors(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	other := NewIssuer("other", time.Hour)
	expired := NewIssuer("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	foreign, _ := other.GenerateToken(1, "bob")
	old, _ := expired.GenerateToken(1, "bob")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"чужой секрет", foreign, ErrInvalidToken},
		{"истекший токен", old, ErrExpiredToken},
		{"мусор", "not-a-token", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.ValidateToken(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidateToken() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	token, _ := issuer.GenerateToken(7, "carol")

	var gotID int
	var gotLogin string
	handler := issuer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFromContext(r.Context())
		gotLogin, _ = UserLoginFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"без токена", "", http.StatusUnauthorized},
		{"неверный формат", "Token " + token, http.StatusUnauthorized},
		{"неверный токен", "Bearer abc", http.StatusUnauthorized},
		{"валидный токен", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if gotID != 7 || gotLogin != "carol" {
		t.Errorf("контекст: id=%d login=%q", gotID, gotLogin)
	}
}
