package pages

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/nav"
	"github.com/anonsocial/anon/internal/session"
)

// Backend rules for usernames, enforced here too so a doomed request is
// never sent.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{4,15}$`)

const seedAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSeed() string {
	b := make([]byte, 10)
	for i := range b {
		b[i] = seedAlphabet[rand.Intn(len(seedAlphabet))]
	}
	return string(b)
}

// SetupPage completes a fresh account: pick a username, roll an avatar seed,
// optionally write a first bio.
type SetupPage struct {
	client *api.Client
	auth   *session.Store
	nav    nav.Navigator
	notify Notifier

	mu         sync.Mutex
	avatarSeed string
	submitting bool
	err        string
}

// NewSetup wires a profile-setup page with a fresh random avatar seed.
func NewSetup(client *api.Client, auth *session.Store, navigator nav.Navigator, notify Notifier) *SetupPage {
	return &SetupPage{
		client:     client,
		auth:       auth,
		nav:        navigator,
		notify:     notify,
		avatarSeed: randomSeed(),
	}
}

// AvatarSeed returns the seed the avatar preview renders from.
func (s *SetupPage) AvatarSeed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatarSeed
}

// RegenerateAvatar rolls a new seed.
func (s *SetupPage) RegenerateAvatar() {
	s.mu.Lock()
	s.avatarSeed = randomSeed()
	s.mu.Unlock()
}

// Err returns the page's last error, or "".
func (s *SetupPage) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Gate applies this page's routing rules: anonymous visitors go to the
// landing page, accounts that already picked a username go to the feed. It
// reports whether the page may render.
func (s *SetupPage) Gate() bool {
	st := s.auth.State()
	if st.Phase.Indeterminate() {
		return false
	}
	if st.Phase != session.Authenticated {
		s.nav.Replace(nav.RouteLanding)
		return false
	}
	if st.User.HasUsername() {
		s.nav.Replace(nav.RouteFeed)
		return false
	}
	return true
}

// Submit claims the username (with the current avatar seed), sets the bio if
// one was written, refetches the shared session and moves on to the feed.
func (s *SetupPage) Submit(ctx context.Context, username, bio string) error {
	bio = strings.TrimSpace(bio)
	if !usernamePattern.MatchString(username) {
		verr := ValidationError("Usernames are 4-15 letters, digits or underscores.")
		s.setErr(verr.Error())
		return verr
	}
	if runeLen(bio) > maxBioLength {
		s.setErr(errBioTooLong.Error())
		return errBioTooLong
	}

	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return errBusy
	}
	s.submitting = true
	s.err = ""
	seed := s.avatarSeed
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	if _, err := s.client.SetUsername(ctx, username, seed); err != nil {
		msg := api.Message(err, "An unknown error occurred.")
		s.setErr(msg)
		s.notify.Error("Something went wrong.", msg)
		return err
	}

	if bio != "" {
		if _, err := s.client.SetBio(ctx, bio); err != nil {
			msg := "Failed to set bio"
			s.setErr(msg)
			s.notify.Error("Something went wrong.", msg)
			return err
		}
	}

	s.auth.Refetch(ctx)
	s.notify.Success("Success!", "Your Anon profile is ready.")
	s.nav.Push(nav.RouteFeed)
	return nil
}

func (s *SetupPage) setErr(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}
