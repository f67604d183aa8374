// Package client is the Go API client for the photoshare server. It
// keeps the session in memory, renews the access token on expiry with
// a single shared network call, and propagates session state between
// sibling sessions the way browser tabs share one login.
package client

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the client-side session state.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Event is a session-state transition broadcast to sibling sessions.
type Event struct {
	State       State
	AccessToken string
	User        Profile
}

// Bus connects sibling Sessions of one user agent. A transition in any
// member is applied to the others without extra network traffic, and
// the shared singleflight group collapses concurrent renewals into one
// request no matter which member noticed the expiry first.
type Bus struct {
	mu      sync.Mutex
	members []*Session

	renews singleflight.Group
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) attach(s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members = append(b.members, s)
}

// broadcast applies ev to every member except the origin. Members adopt
// the state directly; they never renew in response to a broadcast.
func (b *Bus) broadcast(origin *Session, ev Event) {
	b.mu.Lock()
	members := make([]*Session, len(b.members))
	copy(members, b.members)
	b.mu.Unlock()

	for _, m := range members {
		if m == origin {
			continue
		}
		m.apply(ev)
	}
}
