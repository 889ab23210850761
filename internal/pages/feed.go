package pages

import (
	"context"
	"strings"
	"sync"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/guard"
	"github.com/anonsocial/anon/internal/nav"
	"github.com/anonsocial/anon/internal/session"
)

// FeedPage is the main post feed plus the composer.
type FeedPage struct {
	*postList

	client *api.Client
	auth   *session.Store
	nav    nav.Navigator
	notify Notifier
	guard  guard.Guard

	mu      sync.Mutex
	posting bool
	postErr string
}

// NewFeed wires a feed page. Nothing is fetched until Enter.
func NewFeed(client *api.Client, auth *session.Store, navigator nav.Navigator, notify Notifier) *FeedPage {
	return &FeedPage{
		postList: newPostList(client, notify),
		client:   client,
		auth:     auth,
		nav:      navigator,
		notify:   notify,
		guard:    guard.Protected(),
	}
}

// Guard evaluates the protected-route guard for the current session state.
func (f *FeedPage) Guard() guard.Result {
	return f.guard.Decide(f.auth.State())
}

// Enter runs the page's entry checks and loads the feed. A session without a
// username is the profile-incomplete third state: the guard admits it, so the
// page itself must bounce to profile setup.
func (f *FeedPage) Enter(ctx context.Context) {
	res := f.Guard()
	switch res.Decision {
	case guard.Wait:
		return
	case guard.Redirect:
		f.nav.Replace(res.Target)
		return
	}

	st := f.auth.State()
	if !st.User.HasUsername() {
		f.nav.Replace(nav.RouteProfileSetup)
		return
	}

	f.Refresh(ctx)
}

// Refresh reloads the feed. Each call invalidates earlier in-flight loads; a
// denial response logs the user out instead of showing a raw error.
func (f *FeedPage) Refresh(ctx context.Context) {
	tag := f.beginFetch()
	posts, err := f.client.ListPosts(ctx)
	if err != nil {
		if api.IsAuthDenied(err) {
			f.invalidateFetch()
			f.auth.Logout(ctx)
			return
		}
		f.commitFetch(tag, nil, api.Message(err, "could not load posts"))
		return
	}
	f.commitFetch(tag, posts, "")
}

// PostError returns the composer's last error, or "".
func (f *FeedPage) PostError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postErr
}

// Posting reports whether a submit is in flight.
func (f *FeedPage) Posting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posting
}

// Remaining returns how many characters the composer still allows.
func Remaining(content string) int {
	return maxPostLength - runeLen(content)
}

// SubmitPost validates and submits the composer content. The new post shows
// up locally at once; on success it is reconciled with the server's copy, on
// failure it is removed again and the error surfaced.
func (f *FeedPage) SubmitPost(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)

	var verr error
	switch {
	case content == "":
		verr = errEmptyPost
	case runeLen(content) > maxPostLength:
		verr = errPostTooLong
	}
	st := f.auth.State()
	if verr == nil && !st.User.HasUsername() {
		verr = ValidationError("Sorry you cannot post. Either not logged in or profile not setup.")
	}
	if verr != nil {
		f.mu.Lock()
		f.postErr = verr.Error()
		f.mu.Unlock()
		return verr
	}

	f.mu.Lock()
	if f.posting {
		f.mu.Unlock()
		return errBusy
	}
	f.posting = true
	f.postErr = ""
	f.mu.Unlock()

	// Optimistic insert: a provisional post with ID 0 pending the server's
	// authoritative copy.
	provisional := api.Post{
		Content: content,
		Author:  api.Author{Username: *st.User.Username, AuthorID: st.User.ID},
	}
	f.postList.mu.Lock()
	captured := make([]api.Post, len(f.postList.items))
	copy(captured, f.postList.items)
	f.postList.items = append([]api.Post{provisional}, f.postList.items...)
	f.postList.mu.Unlock()

	created, err := f.client.CreatePost(ctx, content)

	f.postList.mu.Lock()
	if err != nil {
		f.postList.items = captured
	} else if idx := f.postList.indexLocked(0); idx >= 0 {
		f.postList.items[idx] = *created
	}
	f.postList.mu.Unlock()

	f.mu.Lock()
	f.posting = false
	f.mu.Unlock()

	if err != nil {
		if api.IsAuthDenied(err) {
			f.setPostErr("Authentication error. Please log in again.")
			f.auth.Logout(ctx)
			return err
		}
		msg := api.Message(err, "Could not submit post.")
		f.setPostErr(msg)
		f.notify.Error("Post Error", msg)
		return err
	}

	f.notify.Success("Success!", "Your post has been submitted.")
	return nil
}

// DeletePost removes one of the user's own posts. Deletion is deliberately
// not optimistic: a post disappears only after the backend confirms, because
// showing a false removal is worse than a short wait. After confirmation the
// local copy is dropped and earlier in-flight list loads are invalidated so
// an out-of-order response cannot bring the post back; then the list is
// reloaded.
func (f *FeedPage) DeletePost(ctx context.Context, postID int) error {
	if err := f.client.DeletePost(ctx, postID); err != nil {
		f.notify.Error("Error", "Failed to delete post")
		return err
	}
	f.removeLocal(postID)
	f.invalidateFetch()
	f.notify.Success("Success", "Post deleted successfully")
	f.Refresh(ctx)
	return nil
}

func (f *FeedPage) setPostErr(msg string) {
	f.mu.Lock()
	f.postErr = msg
	f.mu.Unlock()
}
