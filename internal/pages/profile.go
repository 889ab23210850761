package pages

import (
	"context"
	"sync"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/nav"
	"github.com/anonsocial/anon/internal/session"
)

// ProfilePage shows a user's public profile, their posts in fixed-size pages,
// and — for the viewer's own profile — the bio editor and referral card.
type ProfilePage struct {
	*postList

	client   *api.Client
	auth     *session.Store
	nav      nav.Navigator
	notify   Notifier
	username string

	mu        sync.Mutex
	profile   *api.PublicProfile
	loading   bool
	loadErr   string
	page      int
	total     int
	savingBio bool
}

// NewProfile wires a profile page for the given username.
func NewProfile(client *api.Client, auth *session.Store, navigator nav.Navigator, notify Notifier, username string) *ProfilePage {
	return &ProfilePage{
		postList: newPostList(client, notify),
		client:   client,
		auth:     auth,
		nav:      navigator,
		notify:   notify,
		username: username,
		page:     1,
	}
}

// IsOwn reports whether the viewer is looking at their own profile.
func (p *ProfilePage) IsOwn() bool {
	st := p.auth.State()
	return st.User.HasUsername() && *st.User.Username == p.username
}

// Profile returns the loaded profile, or nil.
func (p *ProfilePage) Profile() *api.PublicProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

// ProfileError returns the profile-load error, or "".
func (p *ProfilePage) ProfileError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadErr
}

// Enter loads the profile and the first page of posts. The viewer's own
// profile is served straight from the session store instead of a second
// round trip.
func (p *ProfilePage) Enter(ctx context.Context) {
	if st := p.auth.State(); st.User.HasUsername() && *st.User.Username == p.username {
		u := st.User
		p.mu.Lock()
		p.profile = &api.PublicProfile{
			ID:           u.ID,
			Username:     *u.Username,
			IsWaitListed: u.IsWaitListed,
			Tags:         u.Tags,
			Bio:          u.Bio,
			AvatarSeed:   u.AvatarSeed,
		}
		p.loading = false
		p.mu.Unlock()
	} else {
		p.mu.Lock()
		p.loading = true
		p.loadErr = ""
		p.mu.Unlock()

		profile, err := p.client.PublicProfile(ctx, p.username)

		p.mu.Lock()
		p.loading = false
		if err != nil {
			p.loadErr = api.Message(err, "Failed to load profile")
			p.mu.Unlock()
			return
		}
		p.profile = profile
		p.mu.Unlock()
	}

	p.fetchPosts(ctx)
}

// PageInfo describes the pagination controls.
type PageInfo struct {
	Current int
	Count   int
	HasPrev bool
	HasNext bool
}

// Pagination returns the current page, the page count derived from the
// backend's total, and which controls are enabled.
func (p *ProfilePage) Pagination() PageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := (p.total + postsPerPage - 1) / postsPerPage
	if count < 1 {
		count = 1
	}
	return PageInfo{
		Current: p.page,
		Count:   count,
		HasPrev: p.page > 1,
		HasNext: p.page < count,
	}
}

// NextPage advances to the next page if there is one and refetches.
func (p *ProfilePage) NextPage(ctx context.Context) {
	info := p.Pagination()
	if !info.HasNext {
		return
	}
	p.mu.Lock()
	p.page++
	p.mu.Unlock()
	p.fetchPosts(ctx)
}

// PrevPage goes back one page if possible and refetches.
func (p *ProfilePage) PrevPage(ctx context.Context) {
	info := p.Pagination()
	if !info.HasPrev {
		return
	}
	p.mu.Lock()
	p.page--
	p.mu.Unlock()
	p.fetchPosts(ctx)
}

// fetchPosts loads the current page. The fetch is sequence-tagged so a slower
// response for an older page cannot overwrite a newer one.
func (p *ProfilePage) fetchPosts(ctx context.Context) {
	p.mu.Lock()
	offset := (p.page - 1) * postsPerPage
	p.mu.Unlock()

	tag := p.beginFetch()
	result, err := p.client.UserPosts(ctx, p.username, postsPerPage, offset)
	if err != nil {
		p.commitFetch(tag, nil, api.Message(err, "Could not fetch user's posts"))
		return
	}
	if p.commitFetch(tag, result.Items, "") {
		p.mu.Lock()
		p.total = result.Total
		p.mu.Unlock()
	}
}

// SavingBio reports whether a bio update is in flight.
func (p *ProfilePage) SavingBio() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.savingBio
}

// SaveBio updates the viewer's bio. Oversized input is rejected before any
// request. The new text shows immediately; on success the profile is
// reconciled with the server's copy and the shared session store refetched,
// on failure the previous bio is restored exactly.
func (p *ProfilePage) SaveBio(ctx context.Context, bio string) error {
	if runeLen(bio) > maxBioLength {
		return errBioTooLong
	}

	p.mu.Lock()
	if p.savingBio {
		p.mu.Unlock()
		return errBusy
	}
	if p.profile == nil {
		p.mu.Unlock()
		return ValidationError("Profile is not loaded yet.")
	}
	p.savingBio = true
	captured := p.profile.Bio
	b := bio
	p.profile.Bio = &b
	p.mu.Unlock()

	updated, err := p.client.SetBio(ctx, bio)

	p.mu.Lock()
	p.savingBio = false
	if err != nil {
		p.profile.Bio = captured
		p.mu.Unlock()
		p.notify.Error("Error", "Failed to update bio")
		return err
	}
	p.profile.Bio = updated.Bio
	p.mu.Unlock()

	// Keep the shared session state consistent with the backend rather than
	// trusting the mutation response shape.
	p.auth.Refetch(ctx)
	p.notify.Success("Success", "Your bio has been updated")
	return nil
}

// DeletePost removes one of the viewer's posts, waits for confirmation, then
// reloads the current page so the listing and total stay accurate. The
// invalidation step guarantees a stale page response cannot resurrect the
// deleted post.
func (p *ProfilePage) DeletePost(ctx context.Context, postID int) error {
	if err := p.client.DeletePost(ctx, postID); err != nil {
		p.notify.Error("Error", "Failed to delete post")
		return err
	}
	p.removeLocal(postID)
	p.invalidateFetch()
	p.notify.Success("Success", "Post deleted successfully")
	p.fetchPosts(ctx)
	return nil
}
