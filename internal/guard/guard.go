// Package guard decides whether a page may render for the current session
// state. One parametrized guard covers both directions: Protected requires a
// session, Guest requires its absence.
package guard

import (
	"github.com/anonsocial/anon/internal/nav"
	"github.com/anonsocial/anon/internal/session"
)

// Decision says what the page shell should do right now.
type Decision int

const (
	// Wait means the session is still indeterminate; show a neutral
	// placeholder and render nothing gated.
	Wait Decision = iota
	// Render means the guard's predicate holds; render children.
	Render
	// Redirect means the predicate fails; navigate to Result.Target and
	// render nothing.
	Redirect
)

// Result is a guard decision plus the redirect target when applicable.
type Result struct {
	Decision Decision
	Target   string
}

// Guard is a predicate over the session state plus a redirect target for when
// it fails.
type Guard struct {
	allow  func(session.State) bool
	target string
}

// New builds a guard from a predicate and redirect target.
func New(allow func(session.State) bool, target string) Guard {
	return Guard{allow: allow, target: target}
}

// Decide evaluates the guard against a session snapshot. While the session is
// indeterminate the answer is always Wait, never a redirect, so no flash of
// wrong content is possible.
func (g Guard) Decide(st session.State) Result {
	if st.Phase.Indeterminate() {
		return Result{Decision: Wait}
	}
	if g.allow(st) {
		return Result{Decision: Render}
	}
	return Result{Decision: Redirect, Target: g.target}
}

// Protected requires an authenticated session; anything else bounces to the
// landing page. An errored check counts as "not signed in" here — the landing
// page is where retry happens.
func Protected() Guard {
	return New(func(st session.State) bool {
		return st.Phase == session.Authenticated
	}, nav.RouteLanding)
}

// Guest is the inverse: signed-in visitors are sent to the feed.
func Guest() Guard {
	return New(func(st session.State) bool {
		return st.Phase != session.Authenticated
	}, nav.RouteFeed)
}
