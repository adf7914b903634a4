package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ID:       7,
		Username: "dr.lan",
		Email:    "lan@example.com",
		Role:     "doctor",
		IsActive: true,
	}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (*Identity, string, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID *Identity
	var gotTok string
	handler := func(c echo.Context) error {
		gotID = IdentityFromContext(c.Request().Context())
		gotTok = TokenFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	}
	err := JWTMiddleware(cfg)(handler)(c)
	return gotID, gotTok, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok := createTestToken(t, validClaims(), testSigningKey)

	id, fwd, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == nil || id.ID != 7 || id.Role != "doctor" || id.Username != "dr.lan" {
		t.Errorf("unexpected identity %+v", id)
	}
	if fwd != tok {
		t.Error("expected raw token to be stored for forwarding")
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tok := createTestToken(t, validClaims(), []byte("some-other-key"))
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Expired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	tok := createTestToken(t, claims, testSigningKey)
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Issuer(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "user_service"
	tok := createTestToken(t, claims, testSigningKey)

	if _, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "user_service"}, "Bearer "+tok); err != nil {
		t.Errorf("expected matching issuer to pass, got %v", err)
	}
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "elsewhere"}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RejectedClaims(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Claims)
	}{
		{"no id", func(c *Claims) { c.ID = 0 }},
		{"no role", func(c *Claims) { c.Role = "" }},
		{"inactive", func(c *Claims) { c.IsActive = false }},
		{"unknown role", func(c *Claims) { c.Role = "janitor" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.modify(&claims)
			tok := createTestToken(t, claims, testSigningKey)
			_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tok)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	tok, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, _, err = runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer passthrough")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var id *Identity
	var tok string
	handler := func(c echo.Context) error {
		id = IdentityFromContext(c.Request().Context())
		tok = TokenFromContext(c.Request().Context())
		return nil
	}
	if err := DevAuthMiddleware()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == nil || id.Role != "admin" {
		t.Errorf("expected admin identity, got %+v", id)
	}
	if tok != "passthrough" {
		t.Errorf("expected token to be forwarded, got %q", tok)
	}
}

func TestFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if IdentityFromContext(req.Context()) != nil {
		t.Error("expected nil identity")
	}
	if TokenFromContext(req.Context()) != "" {
		t.Error("expected empty token")
	}
}
