package pages

import (
	"context"
	"sync"

	"github.com/anonsocial/anon/internal/nav"
	"github.com/anonsocial/anon/internal/session"
)

// Header is the view model for the chrome above every page.
type Header struct {
	Username   string
	Initials   string
	ShowBack   bool
	CanLogout  bool
	LoggingOut bool
}

// Shell is the layout chrome shared by all pages: identity header, logout
// control, back navigation. It owns nothing but presentation state; the
// session store stays authoritative.
type Shell struct {
	auth *session.Store
	nav  nav.Navigator

	mu         sync.Mutex
	loggingOut bool
}

// NewShell wires the page shell.
func NewShell(auth *session.Store, navigator nav.Navigator) *Shell {
	return &Shell{auth: auth, nav: navigator}
}

// Header builds the chrome for the current session state.
func (s *Shell) Header(showBack bool) Header {
	st := s.auth.State()
	h := Header{ShowBack: showBack}
	if st.Phase == session.Authenticated {
		h.CanLogout = true
		if st.User.HasUsername() {
			h.Username = *st.User.Username
		}
	}
	h.Initials = Initials(h.Username)
	s.mu.Lock()
	h.LoggingOut = s.loggingOut
	s.mu.Unlock()
	return h
}

// Logout runs the store's logout once; repeated clicks while it is in flight
// are ignored.
func (s *Shell) Logout(ctx context.Context) {
	s.mu.Lock()
	if s.loggingOut {
		s.mu.Unlock()
		return
	}
	s.loggingOut = true
	s.mu.Unlock()

	s.auth.Logout(ctx)

	s.mu.Lock()
	s.loggingOut = false
	s.mu.Unlock()
}

// Back returns to the feed.
func (s *Shell) Back() {
	s.nav.Push(nav.RouteFeed)
}
