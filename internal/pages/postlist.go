package pages

import (
	"context"
	"sync"

	"github.com/anonsocial/anon/internal/api"
)

// postList is the mutable post collection shared by the feed and profile
// pages. It owns the optimistic vote protocol and the per-post in-flight
// guards; list loading stays with the page, which tags every fetch with a
// sequence number through beginFetch/commitFetch so a stale response is
// discarded instead of applied.
type postList struct {
	client *api.Client
	notify Notifier

	mu      sync.Mutex
	items   []api.Post
	seq     uint64
	loading bool
	loadErr string
	voting  map[int]bool
}

func newPostList(client *api.Client, notify Notifier) *postList {
	return &postList{
		client: client,
		notify: notify,
		voting: make(map[int]bool),
	}
}

// Posts returns a snapshot of the current items.
func (l *postList) Posts() []api.Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]api.Post, len(l.items))
	copy(out, l.items)
	return out
}

// Loading reports whether a list fetch is in flight.
func (l *postList) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// LoadError returns the last list-fetch error, or "".
func (l *postList) LoadError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadErr
}

// beginFetch marks a new list fetch and returns its sequence tag. Any fetch
// started earlier is implicitly invalidated.
func (l *postList) beginFetch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.loading = true
	l.loadErr = ""
	return l.seq
}

// commitFetch applies a fetch result if it is still the latest. It reports
// whether the result was applied.
func (l *postList) commitFetch(tag uint64, items []api.Post, errMsg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tag != l.seq {
		return false
	}
	l.loading = false
	if errMsg != "" {
		l.loadErr = errMsg
		return true
	}
	l.items = items
	return true
}

// invalidateFetch bumps the sequence so any in-flight fetch result is
// dropped. Used after a confirmed delete: an out-of-order list response must
// not resurrect the removed post.
func (l *postList) invalidateFetch() {
	l.mu.Lock()
	l.seq++
	l.loading = false
	l.mu.Unlock()
}

// Vote applies voteType (+1 or -1) to a post. Voting the same value again is
// an un-vote and maps to the removal endpoint; anything else is an upsert.
// The local score changes immediately and is reconciled with the
// server-computed value on success, or restored exactly on failure. A second
// vote on the same post while one is in flight is rejected, not queued.
func (l *postList) Vote(ctx context.Context, postID, voteType int) error {
	l.mu.Lock()
	if l.voting[postID] {
		l.mu.Unlock()
		return errBusy
	}
	idx := l.indexLocked(postID)
	if idx < 0 {
		l.mu.Unlock()
		return ValidationError("That post is gone.")
	}
	l.voting[postID] = true

	// Capture, then predict.
	prevScore := l.items[idx].Score
	prevVote := l.items[idx].UserVote

	unvote := prevVote != nil && *prevVote == voteType
	if unvote {
		l.items[idx].Score = prevScore - voteType
		l.items[idx].UserVote = nil
	} else {
		predicted := prevScore + voteType
		if prevVote != nil {
			predicted -= *prevVote
		}
		l.items[idx].Score = predicted
		v := voteType
		l.items[idx].UserVote = &v
	}
	l.mu.Unlock()

	var result *api.VoteResult
	var err error
	if unvote {
		result, err = l.client.RemoveVote(ctx, postID)
	} else {
		result, err = l.client.SetVote(ctx, postID, voteType)
	}

	l.mu.Lock()
	delete(l.voting, postID)
	idx = l.indexLocked(postID)
	if idx >= 0 {
		if err != nil {
			// Exact rollback.
			l.items[idx].Score = prevScore
			l.items[idx].UserVote = prevVote
		} else {
			// The server's score is authoritative, not our prediction.
			l.items[idx].Score = result.Score
			l.items[idx].UserVote = result.UserVote
		}
	}
	l.mu.Unlock()

	if err != nil {
		l.notify.Error("Error", "Failed to vote on post")
		return err
	}
	return nil
}

// ApplyEvent folds a live feed event into the list. Vote events for a post
// with a local vote in flight are skipped; the reconcile step will fetch a
// fresher score anyway.
func (l *postList) ApplyEvent(ev api.FeedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch ev.Type {
	case api.EventNewPost:
		if ev.Post != nil && l.indexLocked(ev.Post.ID) < 0 {
			l.items = append([]api.Post{*ev.Post}, l.items...)
		}
	case api.EventVote:
		if l.voting[ev.PostID] {
			return
		}
		if idx := l.indexLocked(ev.PostID); idx >= 0 {
			l.items[idx].Score = ev.Score
		}
	case api.EventDelete:
		if idx := l.indexLocked(ev.PostID); idx >= 0 {
			l.items = append(l.items[:idx], l.items[idx+1:]...)
		}
	}
}

// removeLocal drops a post from the list without touching the backend.
func (l *postList) removeLocal(postID int) {
	l.mu.Lock()
	if idx := l.indexLocked(postID); idx >= 0 {
		l.items = append(l.items[:idx], l.items[idx+1:]...)
	}
	l.mu.Unlock()
}

func (l *postList) indexLocked(postID int) int {
	for i := range l.items {
		if l.items[i].ID == postID {
			return i
		}
	}
	return -1
}
