package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestResolveIdentityFromToken(t *testing.T) {
	cfg := testConfig()
	cfg.jwtSecret = "test-secret"

	r := httptest.NewRequest(http.MethodGet, "/match/m1/ws", nil)
	r.AddCookie(&http.Cookie{Name: tokenCookieName, Value: signToken(t, cfg.jwtSecret, jwt.MapClaims{
		"sub":  "user-42",
		"name": "Ann",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})})
	w := httptest.NewRecorder()

	identity, name := resolveIdentity(cfg, w, r)
	assert.Equal(t, "user-42", identity)
	assert.Equal(t, "Ann", name)
}

func TestResolveIdentityBadSignatureDegradesToAnonymous(t *testing.T) {
	cfg := testConfig()
	cfg.jwtSecret = "test-secret"

	r := httptest.NewRequest(http.MethodGet, "/match/m1/ws", nil)
	r.AddCookie(&http.Cookie{Name: tokenCookieName, Value: signToken(t, "wrong-secret", jwt.MapClaims{
		"sub": "user-42",
	})})
	w := httptest.NewRecorder()

	identity, name := resolveIdentity(cfg, w, r)
	assert.NotEqual(t, "user-42", identity, "forged tokens never grant an identity")
	assert.NotEmpty(t, identity)
	assert.NotEmpty(t, name)

	// A fresh anonymous cookie was issued.
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, identityCookieName, cookies[0].Name)
	assert.Equal(t, identity, cookies[0].Value)
}

func TestResolveIdentityReusesAnonymousCookie(t *testing.T) {
	cfg := testConfig()

	r := httptest.NewRequest(http.MethodGet, "/match/m1/ws", nil)
	r.AddCookie(&http.Cookie{Name: identityCookieName, Value: "existing-anon"})
	w := httptest.NewRecorder()

	identity, name := resolveIdentity(cfg, w, r)
	assert.Equal(t, "existing-anon", identity)
	assert.Equal(t, "player-existing", name)
	assert.Empty(t, w.Result().Cookies(), "no new cookie when one exists")
}

func TestResolveIdentityTokenWithoutSubject(t *testing.T) {
	cfg := testConfig()
	cfg.jwtSecret = "test-secret"

	r := httptest.NewRequest(http.MethodGet, "/match/m1/ws", nil)
	r.AddCookie(&http.Cookie{Name: tokenCookieName, Value: signToken(t, cfg.jwtSecret, jwt.MapClaims{
		"name": "No Subject",
	})})
	w := httptest.NewRecorder()

	identity, _ := resolveIdentity(cfg, w, r)
	assert.NotEmpty(t, identity, "subject-less tokens fall back to anonymous")
}

func TestAnonName(t *testing.T) {
	assert.Equal(t, "player-abcd1234", anonName("abcd1234efgh"))
	assert.Equal(t, "player-ann", anonName("ann"))
}
