package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

var (
	// ErrUnauthenticated means the session has no valid credentials and
	// the caller must log in again.
	ErrUnauthenticated = errors.New("client: not authenticated")

	// ErrInvalidCredentials is returned by Login on a rejected password.
	ErrInvalidCredentials = errors.New("client: invalid credentials")
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s: %s", e.Status, e.Code, e.Message)
}

// Profile is the authenticated user as returned by the server.
type Profile struct {
	ID          string    `json:"id"`
	LoginName   string    `json:"login_name"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Role        string    `json:"role"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Occupation  string    `json:"occupation"`
	CreatedAt   time.Time `json:"created_at"`
}

type sessionPayload struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	User            Profile   `json:"user"`
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Session is one "tab": it holds the access token and profile in memory
// only. The refresh secret lives exclusively in the HTTP client's
// cookie jar and is never visible to this code.
type Session struct {
	baseURL string
	httpc   *http.Client
	bus     *Bus

	mu    sync.Mutex
	state State
	token string
	user  Profile
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient shares an http.Client (and so a cookie jar) between
// sibling sessions, the way tabs of one browser share cookies.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpc = c }
}

// NewSession creates a session attached to bus. A nil bus gets a
// private one.
func NewSession(baseURL string, bus *Bus, opts ...Option) (*Session, error) {
	if bus == nil {
		bus = NewBus()
	}

	s := &Session{
		baseURL: baseURL,
		bus:     bus,
	}
	for _, o := range opts {
		o(s)
	}

	if s.httpc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		s.httpc = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}

	bus.attach(s)
	return s, nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the profile of the authenticated user.
func (s *Session) User() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, s.state == Authenticated
}

// AccessToken returns the current access token, if any.
func (s *Session) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.state == Authenticated
}

// apply adopts a broadcast state transition from a sibling session.
func (s *Session) apply(ev Event) {
	s.mu.Lock()
	s.state = ev.State
	s.token = ev.AccessToken
	s.user = ev.User
	s.mu.Unlock()
}

func (s *Session) transition(ev Event) {
	s.apply(ev)
	s.bus.broadcast(s, ev)
}

// Login authenticates with the primary credentials and broadcasts the
// resulting state to sibling sessions.
func (s *Session) Login(ctx context.Context, loginName, password string) (Profile, error) {
	body, err := json.Marshal(map[string]string{
		"login_name": loginName,
		"password":   password,
	})
	if err != nil {
		return Profile{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		apiErr := decodeAPIError(resp)
		if apiErr.Code == "invalid_credentials" {
			return Profile{}, ErrInvalidCredentials
		}
		return Profile{}, apiErr
	}

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Profile{}, err
	}

	s.transition(Event{State: Authenticated, AccessToken: payload.AccessToken, User: payload.User})
	return payload.User, nil
}

// Logout revokes the server session and drops local state regardless of
// the server's answer. The transition is broadcast.
func (s *Session) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}

	resp, err := s.httpc.Do(req)
	if err == nil {
		drainClose(resp.Body)
	}

	s.transition(Event{State: Unauthenticated})
	return err
}

// Bootstrap makes exactly one renewal attempt using the cookie-carried
// refresh secret, restoring the session after a fresh process start.
// An unauthenticated outcome is not an error.
func (s *Session) Bootstrap(ctx context.Context) error {
	_, err := s.renew(ctx)
	if err != nil && !errors.Is(err, ErrUnauthenticated) {
		return err
	}
	return nil
}

// Do sends req with the current access token attached. On a 401 with
// code "token_expired" it renews once (shared across sibling sessions)
// and replays the request exactly once. Any other failure, including a
// second expiry, is returned as-is.
func (s *Session) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := s.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if !isTokenExpired(resp) {
		return resp, nil
	}
	drainClose(resp.Body)

	if _, err := s.renew(ctx); err != nil {
		return nil, err
	}

	replay, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err = s.send(ctx, replay)
	if err != nil {
		return nil, err
	}

	// A second expiry right after a successful renewal means the
	// session is gone; do not loop.
	if isTokenExpired(resp) {
		drainClose(resp.Body)
		s.transition(Event{State: Unauthenticated})
		return nil, ErrUnauthenticated
	}
	return resp, nil
}

func (s *Session) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if tok, ok := s.AccessToken(); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return s.httpc.Do(req)
}

// renew rotates the refresh secret and installs the new access token.
// Concurrent callers across all sibling sessions share one network
// call through the bus's singleflight group. The renewal itself runs on
// a background context: once started it must finish, or the rotated
// cookie state and our in-memory state could diverge.
func (s *Session) renew(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v, err, _ := s.bus.renews.Do("renew", func() (any, error) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.baseURL+"/auth/refresh", nil)
		if err != nil {
			return nil, err
		}

		resp, err := s.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer drainClose(resp.Body)

		if resp.StatusCode == http.StatusUnauthorized {
			s.transition(Event{State: Unauthenticated})
			return nil, ErrUnauthenticated
		}
		if resp.StatusCode != http.StatusOK {
			return nil, decodeAPIError(resp)
		}

		var payload sessionPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, err
		}

		s.transition(Event{State: Authenticated, AccessToken: payload.AccessToken, User: payload.User})
		return payload.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// isTokenExpired reports whether resp is the one recoverable 401. The
// body is parsed from a bounded copy so the caller can still read it.
func isTokenExpired(resp *http.Response) bool {
	if resp.StatusCode != http.StatusUnauthorized {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return false
	}

	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Error.Code == "token_expired"
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Code: "unknown"}
	var payload errorPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil && payload.Error.Code != "" {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
	}
	return apiErr
}

// cloneRequest rebuilds req for the replay. Requests with a body must
// carry GetBody (http.NewRequest sets it for the common reader types).
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("client: request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

func drainClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<16))
	_ = rc.Close()
}
