package pages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/session"
)

type spyNav struct {
	mu       sync.Mutex
	replaced []string
	pushed   []string
}

func (n *spyNav) Replace(route string) {
	n.mu.Lock()
	n.replaced = append(n.replaced, route)
	n.mu.Unlock()
}

func (n *spyNav) Push(route string) {
	n.mu.Lock()
	n.pushed = append(n.pushed, route)
	n.mu.Unlock()
}

func (n *spyNav) lastReplaced() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.replaced) == 0 {
		return ""
	}
	return n.replaced[len(n.replaced)-1]
}

func (n *spyNav) lastPushed() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pushed) == 0 {
		return ""
	}
	return n.pushed[len(n.pushed)-1]
}

type spyNotify struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (s *spyNotify) Success(title, detail string) {
	s.mu.Lock()
	s.successes = append(s.successes, detail)
	s.mu.Unlock()
}

func (s *spyNotify) Error(title, detail string) {
	s.mu.Lock()
	s.errors = append(s.errors, detail)
	s.mu.Unlock()
}

func (s *spyNotify) errorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors)
}

func (s *spyNotify) successCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.successes)
}

const aliceProfile = `{"id":1,"username":"alice","is_wait_listed":false,"tags":[],"bio":"hi","avatar_seed":"xyz"}`

// testEnv wires a client, a resolved session store and spies against a test
// backend. newEnv owns /users/me and /auth/logout; register everything else
// on the mux before calling it. An empty me means the backend denies the
// session.
type testEnv struct {
	client *api.Client
	auth   *session.Store
	nav    *spyNav
	notify *spyNotify
}

func newEnv(t *testing.T, mux *http.ServeMux, me string) *testEnv {
	t.Helper()
	if mux == nil {
		mux = http.NewServeMux()
	}
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if me == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		w.Write([]byte(me))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	env := &testEnv{
		client: client,
		nav:    &spyNav{},
		notify: &spyNotify{},
	}
	env.auth = session.New(client, env.nav)
	env.auth.Check(context.Background())
	return env
}

func (e *testEnv) feed(t *testing.T) *FeedPage {
	t.Helper()
	return NewFeed(e.client, e.auth, e.nav, e.notify)
}

func intPtr(v int) *int { return &v }
