package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photoshare/internal/auth/session"
	"photoshare/internal/auth/token"
	"photoshare/internal/identity"
)

func newTestServer(t *testing.T) (*httptest.Server, identity.User) {
	t.Helper()

	scfg := session.DefaultConfig()
	scfg.JWTSigningKey = "0123456789abcdef0123456789abcdef"

	users := identity.NewMemoryStore()
	u, err := users.Create(context.Background(), identity.CreateUserInput{
		LoginName: "took",
		Password:  "second breakfast",
		FirstName: "Peregrin",
		LastName:  "Took",
	})
	require.NoError(t, err)

	issuer, err := token.NewIssuer([]byte(scfg.JWTSigningKey), scfg.Issuer, scfg.AccessTokenTTL)
	require.NoError(t, err)

	svc := session.NewService(scfg, users, session.NewMemoryStore(), issuer, token.NewHasher(nil), nil)

	cfg := Config{
		CookieName:   "refresh_token",
		CookiePath:   "/auth",
		MaxBodyBytes: 1 << 20,
	}
	h := NewHandler(nil, cfg, svc, users, NewGuard(issuer))

	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, u
}

func doLogin(t *testing.T, srv *httptest.Server, login, password string) *http.Response {
	t.Helper()
	body := strings.NewReader(`{"login_name":"` + login + `","password":"` + password + `"}`)
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", body)
	require.NoError(t, err)
	return resp
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatal("refresh_token cookie not set")
	return nil
}

func decodeSession(t *testing.T, resp *http.Response) sessionResponse {
	t.Helper()
	defer resp.Body.Close()
	var out sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var out failureEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Error.Code
}

func TestHandler_LoginSetsCookieAndReturnsToken(t *testing.T) {
	srv, u := newTestServer(t)

	resp := doLogin(t, srv, "took", "second breakfast")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	c := refreshCookie(t, resp)
	require.True(t, c.HttpOnly)
	require.Equal(t, "/auth", c.Path)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)
	require.NotEmpty(t, c.Value)
	require.True(t, c.Expires.After(time.Now()))

	out := decodeSession(t, resp)
	require.NotEmpty(t, out.AccessToken)
	require.Equal(t, u.ID, out.User.ID)
	// The raw refresh secret must never appear in the body.
	require.NotContains(t, out.AccessToken, c.Value)
}

func TestHandler_LoginBadCredentials(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doLogin(t, srv, "took", "elevenses")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_credentials", errorCode(t, resp))
	require.Empty(t, resp.Cookies())
}

func TestHandler_LoginRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/auth/login", "application/json",
		strings.NewReader(`{"login_name": "took", "unexpected": true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_RefreshRotatesCookie(t *testing.T) {
	srv, u := newTestServer(t)

	login := doLogin(t, srv, "took", "second breakfast")
	require.Equal(t, http.StatusOK, login.StatusCode)
	decodeSession(t, login)
	first := refreshCookie(t, login)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	req.AddCookie(first)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	second := refreshCookie(t, resp)
	require.NotEqual(t, first.Value, second.Value)

	out := decodeSession(t, resp)
	require.Equal(t, u.ID, out.User.ID)
	require.NotEmpty(t, out.AccessToken)

	// The consumed secret is dead: replaying it must fail and clear the cookie.
	replay, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	replay.AddCookie(first)

	resp2, err := http.DefaultClient.Do(replay)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	cleared := refreshCookie(t, resp2)
	require.Empty(t, cleared.Value)
	require.Equal(t, "session_expired", errorCode(t, resp2))
}

func TestHandler_RefreshWithoutCookie(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/auth/refresh", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, CodeUnauthorized, errorCode(t, resp))
}

func TestHandler_LogoutClearsCookieAndKillsSession(t *testing.T) {
	srv, _ := newTestServer(t)

	login := doLogin(t, srv, "took", "second breakfast")
	decodeSession(t, login)
	c := refreshCookie(t, login)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/logout", nil)
	require.NoError(t, err)
	req.AddCookie(c)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	cleared := refreshCookie(t, resp)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	// The revoked secret can no longer renew.
	renew, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	require.NoError(t, err)
	renew.AddCookie(c)

	resp2, err := http.DefaultClient.Do(renew)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

// revokeFailStore fails every Revoke while delegating the rest.
type revokeFailStore struct {
	session.Store
	err error
}

func (s revokeFailStore) Revoke(ctx context.Context, now time.Time, secretHash, reason string) error {
	return s.err
}

func TestHandler_LogoutClearsCookieEvenWhenRevokeFails(t *testing.T) {
	scfg := session.DefaultConfig()
	scfg.JWTSigningKey = "0123456789abcdef0123456789abcdef"

	users := identity.NewMemoryStore()
	_, err := users.Create(context.Background(), identity.CreateUserInput{
		LoginName: "took",
		Password:  "second breakfast",
	})
	require.NoError(t, err)

	issuer, err := token.NewIssuer([]byte(scfg.JWTSigningKey), scfg.Issuer, scfg.AccessTokenTTL)
	require.NoError(t, err)

	store := revokeFailStore{Store: session.NewMemoryStore(), err: errors.New("pool exhausted")}
	svc := session.NewService(scfg, users, store, issuer, token.NewHasher(nil), nil)

	cfg := Config{CookieName: "refresh_token", CookiePath: "/auth", MaxBodyBytes: 1 << 20}
	h := NewHandler(nil, cfg, svc, users, NewGuard(issuer))

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	login := doLogin(t, srv, "took", "second breakfast")
	decodeSession(t, login)
	c := refreshCookie(t, login)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/auth/logout", nil)
	require.NoError(t, err)
	req.AddCookie(c)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// The client must drop the secret even though revocation failed.
	cleared := refreshCookie(t, resp)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
	require.Equal(t, "server_error", errorCode(t, resp))
}

func TestHandler_LogoutWithoutCookieIsNoContent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/auth/logout", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	// Cookie is cleared even when nothing matched.
	require.Empty(t, refreshCookie(t, resp).Value)
}

func TestHandler_Me(t *testing.T) {
	srv, u := newTestServer(t)

	login := doLogin(t, srv, "took", "second breakfast")
	out := decodeSession(t, login)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+out.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me meResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	require.Equal(t, u.ID, me.User.ID)
	require.Equal(t, u.LoginName, me.User.LoginName)
}

func TestHandler_MeWithoutToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, CodeUnauthorized, errorCode(t, resp))
}
