package pages

import (
	"context"
	"sync"

	"github.com/anonsocial/anon/internal/api"
)

// ReferralCard shows the viewer's invite code and counters and generates a
// code on demand. All four counters come from the backend verbatim; the
// client never derives one from the others.
type ReferralCard struct {
	client *api.Client
	notify Notifier

	// Base URL the share link points at (the front-end origin, not the
	// backend).
	frontBase string

	mu         sync.Mutex
	stats      *api.ReferralStats
	loading    bool
	err        string
	generating bool
}

// NewReferralCard wires the referral card. frontBase is the origin used to
// build share links.
func NewReferralCard(client *api.Client, notify Notifier, frontBase string) *ReferralCard {
	return &ReferralCard{
		client:    client,
		notify:    notify,
		frontBase: frontBase,
		loading:   true,
	}
}

// Stats returns the loaded stats, or nil.
func (r *ReferralCard) Stats() *api.ReferralStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Loading reports whether the initial fetch is still running.
func (r *ReferralCard) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Err returns the card's error, or "". The card offers "try again", which is
// just another Load call.
func (r *ReferralCard) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Load fetches the viewer's referral stats.
func (r *ReferralCard) Load(ctx context.Context) {
	r.mu.Lock()
	r.loading = true
	r.err = ""
	r.mu.Unlock()

	stats, err := r.client.ReferralStats(ctx)

	r.mu.Lock()
	r.loading = false
	if err != nil {
		r.err = "Failed to load referral data"
	} else {
		r.stats = stats
	}
	r.mu.Unlock()
}

// Generate asks the backend for a referral code. There is no optimistic
// phase: the code cannot be predicted locally, so the card waits for the
// server's stats and takes them wholesale. A second generate while one is in
// flight is rejected.
func (r *ReferralCard) Generate(ctx context.Context) error {
	r.mu.Lock()
	if r.generating {
		r.mu.Unlock()
		return errBusy
	}
	r.generating = true
	r.mu.Unlock()

	stats, err := r.client.GenerateReferral(ctx)

	r.mu.Lock()
	r.generating = false
	if err != nil {
		r.err = "Failed to generate referral link"
		r.mu.Unlock()
		return err
	}
	r.stats = stats
	r.err = ""
	r.mu.Unlock()

	r.notify.Success("Referral link generated!", "You can now share your referral link with friends.")
	return nil
}

// ShareLink builds the invite URL for the current code, or "" when no code
// has been generated yet.
func (r *ReferralCard) ShareLink() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stats == nil || r.stats.ReferralCode == nil {
		return ""
	}
	return r.frontBase + "/referral/" + *r.stats.ReferralCode
}

// InvitePage is the landing flow for someone who followed a referral link.
type InvitePage struct {
	client *api.Client

	mu         sync.Mutex
	validation *api.ReferralValidation
	err        string
}

// NewInvite wires an invite landing page.
func NewInvite(client *api.Client) *InvitePage {
	return &InvitePage{client: client}
}

// Validate checks the code with the backend. Invalid and expired codes are a
// normal outcome, not a transport error.
func (i *InvitePage) Validate(ctx context.Context, code string) {
	v, err := i.client.ValidateReferral(ctx, code)

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		i.err = "Failed to validate referral code."
		return
	}
	i.validation = v
	if !v.IsValid {
		i.err = "This referral code is invalid or has expired."
	}
}

// Validation returns the result of the last Validate, or nil.
func (i *InvitePage) Validation() *api.ReferralValidation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.validation
}

// Err returns the page's error, or "".
func (i *InvitePage) Err() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// JoinURL is where "Sign Up Now" sends the visitor: the backend's referral
// landing redirect, which starts the OAuth flow with the code in its state.
func (i *InvitePage) JoinURL(code string) string {
	return i.client.BaseURL() + "/referral/" + code
}
