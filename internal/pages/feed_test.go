package pages

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/nav"
	"github.com/anonsocial/anon/internal/session"
)

const feedJSON = `[
	{"id":2,"content":"second","score":3,"user_vote":null,"author":{"author_id":9,"username":"bob"}},
	{"id":1,"content":"first","score":-1,"user_vote":-1,"author":{"author_id":1,"username":"alice"}}
]`

func TestEnterRedirectsWhenSignedOut(t *testing.T) {
	env := newEnv(t, nil, "")
	f := env.feed(t)

	f.Enter(context.Background())

	if got := env.nav.lastReplaced(); got != nav.RouteLanding {
		t.Errorf("redirected to %q, want %q", got, nav.RouteLanding)
	}
	if len(f.Posts()) != 0 {
		t.Error("nothing should have been fetched")
	}
}

func TestEnterBouncesProfileIncomplete(t *testing.T) {
	// Authenticated but without a username: the guard admits the session, the
	// page itself must send the user to profile setup.
	env := newEnv(t, nil, `{"id":1,"username":null,"tags":[]}`)
	f := env.feed(t)

	f.Enter(context.Background())

	if got := env.nav.lastReplaced(); got != nav.RouteProfileSetup {
		t.Errorf("redirected to %q, want %q", got, nav.RouteProfileSetup)
	}
}

func TestEnterLoadsFeed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feedJSON))
	})
	env := newEnv(t, mux, aliceProfile)
	f := env.feed(t)

	f.Enter(context.Background())

	posts := f.Posts()
	if len(posts) != 2 || posts[0].ID != 2 || posts[1].ID != 1 {
		t.Fatalf("unexpected posts %+v", posts)
	}
	if f.Loading() || f.LoadError() != "" {
		t.Errorf("loading=%v err=%q after a successful fetch", f.Loading(), f.LoadError())
	}
}

func TestRefreshDenialLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Not authenticated"}`))
	})
	env := newEnv(t, mux, aliceProfile)
	f := env.feed(t)

	f.Refresh(context.Background())

	if got := env.auth.State().Phase; got != session.Unauthenticated {
		t.Errorf("session phase = %v, want Unauthenticated", got)
	}
	if got := env.nav.lastReplaced(); got != nav.RouteLanding {
		t.Errorf("redirected to %q, want %q", got, nav.RouteLanding)
	}
	if f.LoadError() != "" {
		t.Errorf("a denial must not surface as a list error, got %q", f.LoadError())
	}
}

func TestSubmitPostValidation(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		hits++
	})
	env := newEnv(t, mux, aliceProfile)
	f := env.feed(t)

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"empty", "", errEmptyPost},
		{"whitespace only", "   \n\t ", errEmptyPost},
		{"too long", strings.Repeat("x", maxPostLength+1), errPostTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.SubmitPost(context.Background(), tt.content)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if f.PostError() != tt.want.Error() {
				t.Errorf("PostError = %q, want %q", f.PostError(), tt.want.Error())
			}
		})
	}
	if hits != 0 {
		t.Errorf("server saw %d requests; validation must reject before sending", hits)
	}

	if got := Remaining(strings.Repeat("x", maxPostLength)); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestSubmitPostRejectsWithoutUsername(t *testing.T) {
	env := newEnv(t, nil, `{"id":1,"username":null,"tags":[]}`)
	f := env.feed(t)

	err := f.SubmitPost(context.Background(), "hello")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want a validation error", err)
	}
}

func TestSubmitPostOptimisticInsertAndReconcile(t *testing.T) {
	type snapshot struct {
		id      int
		content string
		author  string
	}
	observed := make(chan snapshot, 1)

	var f *FeedPage
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		// While the request is in flight the provisional post must already be
		// visible locally, pending the server's copy.
		posts := f.Posts()
		if len(posts) > 0 {
			observed <- snapshot{posts[0].ID, posts[0].Content, posts[0].Author.Username}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":42,"content":"hello","score":0,"user_vote":null,"author":{"author_id":1,"username":"alice"}}`))
	})
	env := newEnv(t, mux, aliceProfile)
	f = env.feed(t)

	if err := f.SubmitPost(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitPost: %v", err)
	}

	snap := <-observed
	if snap.id != 0 || snap.content != "hello" || snap.author != "alice" {
		t.Errorf("provisional post = %+v", snap)
	}

	posts := f.Posts()
	if len(posts) != 1 || posts[0].ID != 42 {
		t.Fatalf("after reconcile posts = %+v, want the server's copy", posts)
	}
	if env.notify.successCount() != 1 {
		t.Errorf("successes = %d, want 1", env.notify.successCount())
	}
}

func TestSubmitPostRollsBackOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"storage unavailable"}`))
	})
	env := newEnv(t, mux, aliceProfile)
	f := env.feed(t)

	if err := f.SubmitPost(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error")
	}

	if got := len(f.Posts()); got != 0 {
		t.Errorf("posts = %d, want 0; the provisional post must be rolled back", got)
	}
	if f.PostError() != "storage unavailable" {
		t.Errorf("PostError = %q", f.PostError())
	}
	if env.notify.errorCount() != 1 {
		t.Errorf("error notices = %d, want 1", env.notify.errorCount())
	}
}

func TestSubmitPostDenialLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Not authenticated"}`))
	})
	env := newEnv(t, mux, aliceProfile)
	f := env.feed(t)

	if err := f.SubmitPost(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error")
	}
	if got := env.auth.State().Phase; got != session.Unauthenticated {
		t.Errorf("session phase = %v, want Unauthenticated", got)
	}
	if f.PostError() != "Authentication error. Please log in again." {
		t.Errorf("PostError = %q", f.PostError())
	}
}

func TestDeletePostWaitsForConfirmation(t *testing.T) {
	var deleted bool
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deleted {
			w.Write([]byte(`[{"id":2,"content":"second","score":3,"user_vote":null,"author":{"author_id":9,"username":"bob"}}]`))
			return
		}
		w.Write([]byte(feedJSON))
	})
	mux.HandleFunc("/posts/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		deleted = true
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Post deleted"}`))
	})
	env := newEnv(t, mux, aliceProfile)
	f := env.feed(t)
	f.Refresh(context.Background())

	if err := f.DeletePost(context.Background(), 1); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}

	for _, p := range f.Posts() {
		if p.ID == 1 {
			t.Error("deleted post still present after refetch")
		}
	}
	if env.notify.successCount() != 1 {
		t.Errorf("successes = %d, want 1", env.notify.successCount())
	}
}

func TestDeletePostFailureKeepsPost(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feedJSON))
	})
	mux.HandleFunc("/posts/2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"You are not the author of this post"}`))
	})
	env := newEnv(t, mux, aliceProfile)
	f := env.feed(t)
	f.Refresh(context.Background())

	if err := f.DeletePost(context.Background(), 2); err == nil {
		t.Fatal("expected an error")
	}
	if len(f.Posts()) != 2 {
		t.Errorf("posts = %d, want 2; a failed delete must not remove anything", len(f.Posts()))
	}
}

func TestStaleFetchCannotResurrectDeletedPost(t *testing.T) {
	env := newEnv(t, nil, aliceProfile)
	f := env.feed(t)

	stale := []api.Post{{ID: 1, Content: "zombie"}}
	tag := f.beginFetch()
	f.invalidateFetch()

	if f.commitFetch(tag, stale, "") {
		t.Fatal("a fetch started before the invalidation must be dropped")
	}
	if len(f.Posts()) != 0 {
		t.Errorf("posts = %+v, want none", f.Posts())
	}
}

func TestApplyEvent(t *testing.T) {
	env := newEnv(t, nil, aliceProfile)
	f := env.feed(t)

	f.ApplyEvent(api.FeedEvent{Type: api.EventNewPost, Post: &api.Post{ID: 5, Content: "live"}})
	if posts := f.Posts(); len(posts) != 1 || posts[0].ID != 5 {
		t.Fatalf("posts = %+v", posts)
	}

	// Duplicate new_post events are ignored.
	f.ApplyEvent(api.FeedEvent{Type: api.EventNewPost, Post: &api.Post{ID: 5, Content: "live"}})
	if len(f.Posts()) != 1 {
		t.Error("duplicate event must not duplicate the post")
	}

	f.ApplyEvent(api.FeedEvent{Type: api.EventVote, PostID: 5, Score: 7})
	if got := f.Posts()[0].Score; got != 7 {
		t.Errorf("score = %d, want 7", got)
	}

	f.ApplyEvent(api.FeedEvent{Type: api.EventDelete, PostID: 5})
	if len(f.Posts()) != 0 {
		t.Error("delete event must remove the post")
	}
}
