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

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runMiddleware(mw echo.MiddlewareFunc, authHeader string, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(handler)(c)
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
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "", okHandler)
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
			_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header, okHandler)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "0b7d6c1e-5f0a-4a55-9f59-2b1f1f0f6f11",
			Issuer:    "clinic",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: "reception",
		Roles:    []string{RoleStaff},
	}
	token := createTestToken(t, claims, testSigningKey)

	var gotID, gotName string
	var gotRoles []string
	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		gotID = UserIDFromContext(ctx)
		gotName = UsernameFromContext(ctx)
		gotRoles = RolesFromContext(ctx)
		return c.String(http.StatusOK, "ok")
	}

	rec, err := runMiddleware(JWTMiddleware(JWTConfig{Issuer: "clinic", SigningKey: testSigningKey}), "Bearer "+token, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if gotID != claims.Subject {
		t.Errorf("expected subject %s, got %s", claims.Subject, gotID)
	}
	if gotName != "reception" {
		t.Errorf("expected username reception, got %s", gotName)
	}
	if len(gotRoles) != 1 || gotRoles[0] != RoleStaff {
		t.Errorf("expected staff role, got %v", gotRoles)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	token := createTestToken(t, claims, testSigningKey)
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token := createTestToken(t, claims, []byte("some-other-key"))
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+token, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token := createTestToken(t, claims, testSigningKey)
	_, err := runMiddleware(JWTMiddleware(JWTConfig{Issuer: "clinic", SigningKey: testSigningKey}), "Bearer "+token, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Skipper: func(echo.Context) bool { return true }}
	rec, err := runMiddleware(JWTMiddleware(cfg), "", okHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	var roles []string
	var name string
	handler := func(c echo.Context) error {
		roles = RolesFromContext(c.Request().Context())
		name = UsernameFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	}
	_, err := runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "", handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("expected admin role, got %v", roles)
	}
	if name != "dev-user" {
		t.Errorf("expected dev-user, got %s", name)
	}
}

func TestDevAuthMiddleware_VerifiesProvidedToken(t *testing.T) {
	_, err := runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer not-a-token", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("clinic", testSigningKey, time.Hour)
	fixed := time.Now()
	issuer.now = func() time.Time { return fixed }

	token, exp, err := issuer.Issue("user-42", "nurse", []string{RoleStaff})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if !exp.Equal(fixed.Add(time.Hour)) {
		t.Errorf("expected expiry one hour out, got %v", exp)
	}

	var gotID string
	handler := func(c echo.Context) error {
		gotID = UserIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}
	if _, err := runMiddleware(JWTMiddleware(JWTConfig{Issuer: "clinic", SigningKey: testSigningKey}), "Bearer "+token, handler); err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}
	if gotID != "user-42" {
		t.Errorf("expected user-42, got %s", gotID)
	}
}
