package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer mimics the auth endpoints closely enough to drive the
// coordinator: cookie-carried refresh secrets that rotate on every
// renewal, and access tokens that the server can declare expired.
type fakeServer struct {
	mu           sync.Mutex
	refreshCalls int
	refreshDelay time.Duration

	// alwaysExpired makes every issued access token come back as
	// token_expired from /auth/me.
	alwaysExpired bool

	secretSeq   int
	validSecret string
	tokenSeq    int
	validToken  string
}

func (f *fakeServer) issue(w http.ResponseWriter) {
	f.secretSeq++
	f.validSecret = "secret-" + strconv.Itoa(f.secretSeq)
	f.tokenSeq++
	f.validToken = "token-" + strconv.Itoa(f.tokenSeq)

	http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: f.validSecret, Path: "/auth"})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":      f.validToken,
		"access_expires_at": time.Now().Add(15 * time.Minute),
		"user":              Profile{ID: "u1", LoginName: "took", Role: "user"},
	})
}

func writeCode(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": code},
	})
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			LoginName string `json:"login_name"`
			Password  string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LoginName != "took" || body.Password != "second breakfast" {
			writeCode(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.issue(w)
	})

	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delay := f.refreshDelay
		f.mu.Unlock()
		time.Sleep(delay)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.refreshCalls++

		c, err := r.Cookie("refresh_token")
		if err != nil || c.Value == "" || c.Value != f.validSecret {
			writeCode(w, http.StatusUnauthorized, "session_expired")
			return
		}
		f.issue(w)
	})

	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.validSecret = ""
		f.validToken = ""
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		valid := tok != "" && tok == f.validToken
		expired := f.alwaysExpired
		f.mu.Unlock()

		switch {
		case tok == "":
			writeCode(w, http.StatusUnauthorized, "unauthorized")
		case expired || !valid:
			writeCode(w, http.StatusUnauthorized, "token_expired")
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user": Profile{ID: "u1", LoginName: "took"},
			})
		}
	})

	return mux
}

func (f *fakeServer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// expireCurrentToken invalidates the live access token without touching
// the refresh secret, so the next renewal succeeds.
func (f *fakeServer) expireCurrentToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validToken = ""
}

func newFakeEnv(t *testing.T) (*fakeServer, *httptest.Server, *http.Client) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return f, srv, &http.Client{Jar: jar}
}

func TestSession_LoginAndDo(t *testing.T) {
	_, srv, httpc := newFakeEnv(t)
	ctx := context.Background()

	s, err := NewSession(srv.URL, nil, WithHTTPClient(httpc))
	require.NoError(t, err)
	require.Equal(t, Unauthenticated, s.State())

	user, err := s.Login(ctx, "took", "second breakfast")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, Authenticated, s.State())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	resp, err := s.Do(ctx, req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSession_LoginRejected(t *testing.T) {
	_, srv, httpc := newFakeEnv(t)

	s, err := NewSession(srv.URL, nil, WithHTTPClient(httpc))
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "took", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Equal(t, Unauthenticated, s.State())
}

func TestSession_RenewsOnceAndReplays(t *testing.T) {
	f, srv, httpc := newFakeEnv(t)
	ctx := context.Background()

	s, err := NewSession(srv.URL, nil, WithHTTPClient(httpc))
	require.NoError(t, err)
	_, err = s.Login(ctx, "took", "second breakfast")
	require.NoError(t, err)

	f.expireCurrentToken()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	resp, err := s.Do(ctx, req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, f.calls())
	require.Equal(t, Authenticated, s.State())
}

func TestSession_NonExpired401DoesNotRenew(t *testing.T) {
	f, srv, httpc := newFakeEnv(t)
	ctx := context.Background()

	s, err := NewSession(srv.URL, nil, WithHTTPClient(httpc))
	require.NoError(t, err)
	_, err = s.Login(ctx, "took", "second breakfast")
	require.NoError(t, err)

	// No Authorization header reaches the endpoint's "unauthorized"
	// branch, which must not trigger a renewal.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	s.apply(Event{State: Unauthenticated})

	resp, err := s.Do(ctx, req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, f.calls())
}

func TestSession_SecondExpiryGivesUp(t *testing.T) {
	f, srv, httpc := newFakeEnv(t)
	ctx := context.Background()

	s, err := NewSession(srv.URL, nil, WithHTTPClient(httpc))
	require.NoError(t, err)
	_, err = s.Login(ctx, "took", "second breakfast")
	require.NoError(t, err)

	f.mu.Lock()
	f.alwaysExpired = true
	f.mu.Unlock()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	require.NoError(t, err)
	_, err = s.Do(ctx, req)
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Equal(t, 1, f.calls())
	require.Equal(t, Unauthenticated, s.State())
}

func TestSession_TwoTabsShareOneRenewal(t *testing.T) {
	f, srv, httpc := newFakeEnv(t)
	ctx := context.Background()

	bus := NewBus()
	tabA, err := NewSession(srv.URL, bus, WithHTTPClient(httpc))
	require.NoError(t, err)
	tabB, err := NewSession(srv.URL, bus, WithHTTPClient(httpc))
	require.NoError(t, err)

	_, err = tabA.Login(ctx, "took", "second breakfast")
	require.NoError(t, err)

	// Login is broadcast: tab B is authenticated without any request.
	require.Equal(t, Authenticated, tabB.State())
	tokA, _ := tabA.AccessToken()
	tokB, _ := tabB.AccessToken()
	require.Equal(t, tokA, tokB)

	f.expireCurrentToken()
	f.mu.Lock()
	f.refreshDelay = 50 * time.Millisecond
	f.mu.Unlock()

	var wg sync.WaitGroup
	for _, tab := range []*Session{tabA, tabB} {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
			require.NoError(t, err)
			resp, err := s.Do(ctx, req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}(tab)
	}
	wg.Wait()

	// Both tabs noticed the expiry, but only one renewal hit the wire.
	require.Equal(t, 1, f.calls())
	tokA, _ = tabA.AccessToken()
	tokB, _ = tabB.AccessToken()
	require.Equal(t, tokA, tokB)
}

func TestSession_BootstrapRestoresFromCookie(t *testing.T) {
	f, srv, httpc := newFakeEnv(t)
	ctx := context.Background()

	boot, err := NewSession(srv.URL, nil, WithHTTPClient(httpc))
	require.NoError(t, err)
	_, err = boot.Login(ctx, "took", "second breakfast")
	require.NoError(t, err)

	// A fresh "process" shares only the cookie jar.
	fresh, err := NewSession(srv.URL, nil, WithHTTPClient(httpc))
	require.NoError(t, err)
	require.NoError(t, fresh.Bootstrap(ctx))
	require.Equal(t, Authenticated, fresh.State())
	require.Equal(t, 1, f.calls())
}

func TestSession_BootstrapWithoutCookieIsQuiet(t *testing.T) {
	_, srv, _ := newFakeEnv(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	s, err := NewSession(srv.URL, nil, WithHTTPClient(&http.Client{Jar: jar}))
	require.NoError(t, err)

	require.NoError(t, s.Bootstrap(context.Background()))
	require.Equal(t, Unauthenticated, s.State())
}

func TestSession_LogoutBroadcasts(t *testing.T) {
	_, srv, httpc := newFakeEnv(t)
	ctx := context.Background()

	bus := NewBus()
	tabA, err := NewSession(srv.URL, bus, WithHTTPClient(httpc))
	require.NoError(t, err)
	tabB, err := NewSession(srv.URL, bus, WithHTTPClient(httpc))
	require.NoError(t, err)

	_, err = tabA.Login(ctx, "took", "second breakfast")
	require.NoError(t, err)
	require.Equal(t, Authenticated, tabB.State())

	require.NoError(t, tabA.Logout(ctx))
	require.Equal(t, Unauthenticated, tabA.State())
	require.Equal(t, Unauthenticated, tabB.State())
}
