// Package session holds the single source of truth for "who is logged in".
// One Store lives per app instance and is handed to every page explicitly;
// there is no package-level singleton.
package session

import (
	"context"
	"log"
	"sync"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/nav"
)

// Phase is the session lifecycle state. It is a closed enum: consumers switch
// over it exhaustively instead of testing nullable fields.
type Phase int

const (
	// Unknown is the initial state, before the first check has started.
	Unknown Phase = iota
	// Checking means a session fetch is in flight. Gated content must not
	// render yet.
	Checking
	// Authenticated means the backend confirmed a session; User is set.
	Authenticated
	// Unauthenticated means the backend denied the credentials (401/403) or
	// the user logged out. Denial, not failure.
	Unauthenticated
	// Errored means the check failed for any other reason; Err is set.
	Errored
)

func (p Phase) String() string {
	switch p {
	case Unknown:
		return "unknown"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Errored:
		return "errored"
	default:
		return "invalid"
	}
}

// Indeterminate reports whether the session is still being resolved.
func (p Phase) Indeterminate() bool {
	return p == Unknown || p == Checking
}

// State is one snapshot of the session. User is non-nil only when Phase is
// Authenticated; Err is non-empty only when Phase is Errored.
type State struct {
	Phase Phase
	User  *api.Profile
	Err   string
}

// Store owns the session state. All mutation goes through Check and Logout;
// everything else only reads.
type Store struct {
	client *api.Client
	nav    nav.Navigator

	mu       sync.Mutex
	state    State
	seq      uint64
	watchers []chan State
}

// New builds a Store in the Unknown state. Call Check once on app mount.
func New(client *api.Client, navigator nav.Navigator) *Store {
	return &Store{
		client: client,
		nav:    navigator,
		state:  State{Phase: Unknown},
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch returns a channel that receives the latest State after every
// transition. The channel holds at most one pending snapshot; a slow reader
// sees only the newest.
func (s *Store) Watch() <-chan State {
	ch := make(chan State, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	ch <- s.state
	s.mu.Unlock()
	return ch
}

// setLocked replaces the state and notifies watchers. Caller holds s.mu.
func (s *Store) setLocked(st State) {
	s.state = st
	for _, ch := range s.watchers {
		select {
		case ch <- st:
		default:
			// Drop the stale pending snapshot and publish the new one.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// Check fetches /users/me and resolves the session. Each call is tagged with
// a sequence number; if another Check (or Logout) starts before this one
// resolves, the stale response is discarded, so last-started wins rather than
// last-resolved.
func (s *Store) Check(ctx context.Context) {
	s.mu.Lock()
	s.seq++
	mine := s.seq
	s.setLocked(State{Phase: Checking})
	s.mu.Unlock()

	profile, err := s.client.Me(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if mine != s.seq {
		return
	}
	switch {
	case err == nil:
		s.setLocked(State{Phase: Authenticated, User: profile})
	case api.IsAuthDenied(err):
		s.setLocked(State{Phase: Unauthenticated})
	default:
		log.Printf("auth check failed: %v", err)
		s.setLocked(State{Phase: Errored, Err: api.Message(err, "could not check auth status")})
	}
}

// Refetch re-runs the session check. Pages call this after mutations that can
// change session data (bio update, username set) so the store tracks the
// backend rather than trusting the mutation's own response shape.
func (s *Store) Refetch(ctx context.Context) {
	s.Check(ctx)
}

// Logout tells the backend to invalidate the session, then unconditionally
// clears local state and navigates to the landing page. A failed backend call
// is logged and otherwise ignored.
func (s *Store) Logout(ctx context.Context) {
	if err := s.client.Logout(ctx); err != nil {
		log.Printf("backend logout failed: %v", err)
	}

	s.mu.Lock()
	s.seq++ // invalidate any in-flight check
	s.setLocked(State{Phase: Unauthenticated})
	s.mu.Unlock()

	s.nav.Replace(nav.RouteLanding)
}
