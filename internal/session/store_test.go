package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/nav"
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

func newStore(t *testing.T, handler http.Handler) (*Store, *spyNav) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	n := &spyNav{}
	return New(client, n), n
}

func jsonHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func TestCheckResolvesAuthenticated(t *testing.T) {
	s, _ := newStore(t, jsonHandler(http.StatusOK,
		`{"id":7,"username":"alice","tags":[],"bio":"hi"}`))

	if got := s.State().Phase; got != Unknown {
		t.Fatalf("initial phase = %v, want Unknown", got)
	}

	s.Check(context.Background())

	st := s.State()
	if st.Phase != Authenticated {
		t.Fatalf("phase = %v, want Authenticated", st.Phase)
	}
	if st.User == nil || st.User.ID != 7 || !st.User.HasUsername() {
		t.Errorf("unexpected user %+v", st.User)
	}
}

func TestCheckTreatsDenialAsSignedOut(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		s, _ := newStore(t, jsonHandler(status, `{"detail":"Not authenticated"}`))
		s.Check(context.Background())
		st := s.State()
		if st.Phase != Unauthenticated {
			t.Errorf("status %d: phase = %v, want Unauthenticated", status, st.Phase)
		}
		if st.Err != "" || st.User != nil {
			t.Errorf("status %d: denial must not carry an error or user, got %+v", status, st)
		}
	}
}

func TestCheckSurfacesFailures(t *testing.T) {
	s, _ := newStore(t, jsonHandler(http.StatusInternalServerError, `{"detail":"boom"}`))
	s.Check(context.Background())
	st := s.State()
	if st.Phase != Errored {
		t.Fatalf("phase = %v, want Errored", st.Phase)
	}
	if st.Err != "boom" {
		t.Errorf("Err = %q, want boom", st.Err)
	}
}

func TestLogoutClearsStateAndNavigates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"username":"alice","tags":[]}`))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		// The backend failing must not keep the user signed in locally.
		w.WriteHeader(http.StatusInternalServerError)
	})
	s, n := newStore(t, mux)

	s.Check(context.Background())
	s.Logout(context.Background())

	if got := s.State().Phase; got != Unauthenticated {
		t.Errorf("phase = %v, want Unauthenticated", got)
	}
	if got := n.lastReplaced(); got != nav.RouteLanding {
		t.Errorf("navigated to %q, want %q", got, nav.RouteLanding)
	}
}

func TestLogoutInvalidatesInFlightCheck(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"username":"alice","tags":[]}`))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s, _ := newStore(t, mux)

	done := make(chan struct{})
	go func() {
		s.Check(context.Background())
		close(done)
	}()

	<-started
	s.Logout(context.Background())
	close(release)
	<-done

	// The check resolved after the logout; its stale success must be dropped.
	if got := s.State().Phase; got != Unauthenticated {
		t.Errorf("phase = %v, want Unauthenticated", got)
	}
}

func TestWatchDeliversLatestState(t *testing.T) {
	s, _ := newStore(t, jsonHandler(http.StatusUnauthorized, `{"detail":"Not authenticated"}`))

	ch := s.Watch()
	if st := <-ch; st.Phase != Unknown {
		t.Fatalf("first snapshot = %v, want Unknown", st.Phase)
	}

	// Without draining, Check publishes Checking then Unauthenticated; a slow
	// reader must see only the newest.
	s.Check(context.Background())

	select {
	case st := <-ch:
		if st.Phase != Unauthenticated {
			t.Errorf("snapshot = %v, want Unauthenticated", st.Phase)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}
