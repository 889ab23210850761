package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/anonsocial/anon/internal/api"
	"github.com/anonsocial/anon/internal/pages"
	"github.com/anonsocial/anon/internal/session"
)

// termNav prints route changes instead of swapping browser history entries.
type termNav struct {
	route string
}

func (n *termNav) Replace(route string) {
	n.route = route
	fmt.Printf("== %s\n", route)
}

func (n *termNav) Push(route string) {
	n.route = route
	fmt.Printf("-> %s\n", route)
}

// termNotifier renders toasts as plain lines.
type termNotifier struct{}

func (termNotifier) Success(title, detail string) { fmt.Printf("[ok] %s: %s\n", title, detail) }
func (termNotifier) Error(title, detail string)   { fmt.Printf("[!!] %s: %s\n", title, detail) }

// app holds the wired client stack for the command loop.
type app struct {
	client *api.Client
	nav    *termNav
	auth   *session.Store
	shell  *pages.Shell
	feed   *pages.FeedPage
	notify pages.Notifier

	liveCancel context.CancelFunc
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	base := os.Getenv("ANON_BACKEND_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	front := os.Getenv("ANON_FRONTEND_URL")
	if front == "" {
		front = base
	}

	client, err := api.New(base)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	a := &app{client: client, nav: &termNav{}, notify: termNotifier{}}
	a.auth = session.New(client, a.nav)
	a.shell = pages.NewShell(a.auth, a.nav)
	a.feed = pages.NewFeed(client, a.auth, a.nav, a.notify)

	ctx := context.Background()
	a.auth.Check(ctx)
	a.printHeader()

	fmt.Printf("anon client talking to %s (\"help\" for commands)\n", base)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		if cmd == "quit" || cmd == "exit" {
			break
		}
		a.run(ctx, cmd, strings.TrimSpace(rest), front)
	}
	if a.liveCancel != nil {
		a.liveCancel()
	}
}

func (a *app) run(ctx context.Context, cmd, rest, front string) {
	switch cmd {
	case "help":
		fmt.Print(helpText)
	case "login":
		email, code, _ := strings.Cut(rest, " ")
		if email == "" {
			fmt.Println("usage: login <email> [referral-code]")
			return
		}
		if _, err := a.client.DevLogin(ctx, email, strings.TrimSpace(code)); err != nil {
			fmt.Printf("login failed: %s\n", api.Message(err, "unexpected error"))
			return
		}
		a.auth.Check(ctx)
		a.printHeader()
	case "logout":
		a.shell.Logout(ctx)
	case "whoami":
		a.printHeader()
	case "setup":
		username, bio, _ := strings.Cut(rest, " ")
		if username == "" {
			fmt.Println("usage: setup <username> [bio]")
			return
		}
		p := pages.NewSetup(a.client, a.auth, a.nav, a.notify)
		if !p.Gate() {
			return
		}
		if err := p.Submit(ctx, username, strings.TrimSpace(bio)); err != nil {
			fmt.Printf("setup failed: %v\n", err)
		}
	case "feed":
		a.feed.Enter(ctx)
		a.renderPosts(a.feed.Posts(), a.feed.LoadError())
	case "post":
		if err := a.feed.SubmitPost(ctx, rest); err != nil {
			fmt.Printf("post failed: %v\n", err)
			return
		}
		a.renderPosts(a.feed.Posts(), a.feed.LoadError())
	case "vote", "unvote":
		a.vote(ctx, cmd, rest)
	case "delete":
		id, err := strconv.Atoi(rest)
		if err != nil {
			fmt.Println("usage: delete <post-id>")
			return
		}
		if err := a.feed.DeletePost(ctx, id); err != nil {
			fmt.Printf("delete failed: %v\n", err)
		}
	case "profile":
		a.profile(ctx, rest)
	case "referral":
		a.referral(ctx, rest, front)
	case "invite":
		if rest == "" {
			fmt.Println("usage: invite <code>")
			return
		}
		inv := pages.NewInvite(a.client)
		inv.Validate(ctx, rest)
		a.renderInvite(inv, rest)
	case "live":
		a.live(ctx)
	default:
		fmt.Printf("unknown command %q, try \"help\"\n", cmd)
	}
}

func (a *app) vote(ctx context.Context, cmd, rest string) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		fmt.Printf("usage: %s <post-id> [1|-1]\n", cmd)
		return
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		fmt.Printf("bad post id %q\n", fields[0])
		return
	}
	value := 1
	if cmd == "unvote" {
		// Voting the same way again removes the vote, so resend the
		// current vote.
		current := 0
		for _, p := range a.feed.Posts() {
			if p.ID == id && p.UserVote != nil {
				current = *p.UserVote
			}
		}
		if current == 0 {
			fmt.Println("no vote of yours on that post")
			return
		}
		value = current
	} else if len(fields) > 1 {
		if value, err = strconv.Atoi(fields[1]); err != nil || (value != 1 && value != -1) {
			fmt.Println("vote value must be 1 or -1")
			return
		}
	}
	if err := a.feed.Vote(ctx, id, value); err != nil {
		fmt.Printf("vote failed: %v\n", err)
		return
	}
	a.renderPosts(a.feed.Posts(), a.feed.LoadError())
}

func (a *app) profile(ctx context.Context, rest string) {
	username := rest
	if username == "" {
		st := a.auth.State()
		if !st.User.HasUsername() {
			fmt.Println("usage: profile <username>")
			return
		}
		username = *st.User.Username
	}
	p := pages.NewProfile(a.client, a.auth, a.nav, a.notify, username)
	p.Enter(ctx)
	if prof := p.Profile(); prof != nil {
		bio := ""
		if prof.Bio != nil {
			bio = *prof.Bio
		}
		fmt.Printf("@%s  %s\n", prof.Username, bio)
	} else if p.ProfileError() != "" {
		fmt.Printf("[!!] %s\n", p.ProfileError())
		return
	}
	info := p.Pagination()
	a.renderPosts(p.Posts(), p.LoadError())
	fmt.Printf("page %d of %d\n", info.Current, info.Count)
}

func (a *app) referral(ctx context.Context, rest, front string) {
	card := pages.NewReferralCard(a.client, a.notify, front)
	card.Load(ctx)
	if rest == "generate" {
		if err := card.Generate(ctx); err != nil {
			fmt.Printf("generate failed: %v\n", err)
			return
		}
	}
	st := card.Stats()
	if st == nil {
		fmt.Println("referral stats unavailable")
		return
	}
	if link := card.ShareLink(); link != "" {
		fmt.Printf("invite link: %s\n", link)
	} else {
		fmt.Println("no active code, run \"referral generate\"")
	}
	fmt.Printf("referrals: %d total, %d successful, %d remaining\n",
		st.TotalReferrals, st.SuccessfulReferrals, st.RemainingReferrals)
}

func (a *app) renderInvite(inv *pages.InvitePage, code string) {
	v := inv.Validation()
	if v == nil {
		fmt.Printf("[!!] %s\n", inv.Err())
		return
	}
	if !v.IsValid {
		fmt.Println("code is invalid or expired")
		return
	}
	by := ""
	if v.ReferrerUsername != nil {
		by = " from @" + *v.ReferrerUsername
	}
	fmt.Printf("valid invite%s, join at %s\n", by, inv.JoinURL(code))
}

// live subscribes to the websocket feed and folds events into the feed page
// until the next "live" toggles it off.
func (a *app) live(ctx context.Context) {
	if a.liveCancel != nil {
		a.liveCancel()
		a.liveCancel = nil
		fmt.Println("live feed off")
		return
	}
	lctx, cancel := context.WithCancel(ctx)
	events, err := a.client.LiveFeed(lctx)
	if err != nil {
		cancel()
		fmt.Printf("live feed unavailable: %v\n", err)
		return
	}
	a.liveCancel = cancel
	go func() {
		for ev := range events {
			a.feed.ApplyEvent(ev)
			switch ev.Type {
			case api.EventNewPost:
				if ev.Post != nil {
					fmt.Printf("\n* new post from @%s\n> ", ev.Post.Author.Username)
				}
			case api.EventVote:
				fmt.Printf("\n* post %d is now at %+d\n> ", ev.PostID, ev.Score)
			case api.EventDelete:
				fmt.Printf("\n* post %d removed\n> ", ev.PostID)
			}
		}
	}()
	fmt.Println("live feed on")
}

func (a *app) renderPosts(posts []api.Post, loadErr string) {
	if loadErr != "" {
		fmt.Printf("[!!] %s\n", loadErr)
		return
	}
	if len(posts) == 0 {
		fmt.Println("no posts yet")
		return
	}
	for _, p := range posts {
		mine := ""
		if p.UserVote != nil {
			mine = fmt.Sprintf(" (you: %+d)", *p.UserVote)
		}
		fmt.Printf("#%-4d %+d%s  @%s  %s\n      %s\n",
			p.ID, p.Score, mine, p.Author.Username,
			p.CreatedAt.Local().Format("Jan 2 15:04"), p.Content)
	}
}

func (a *app) printHeader() {
	st := a.auth.State()
	switch st.Phase {
	case session.Authenticated:
		h := a.shell.Header(false)
		name := h.Username
		if name == "" {
			name = "(no username yet, run \"setup\")"
		}
		fmt.Printf("signed in as %s\n", name)
	case session.Errored:
		fmt.Printf("session check failed: %s\n", st.Err)
	default:
		fmt.Println("not signed in")
	}
}

const helpText = `commands:
  login <email> [code]   sign in against the dev backend
  logout                 end the session
  whoami                 show session state
  setup <user> [bio]     complete profile setup
  feed                   load the feed
  post <text>            publish a post
  vote <id> [1|-1]       vote on a post (same vote again removes it)
  unvote <id>            remove your vote
  delete <id>            delete your own post
  profile [username]     show a profile and their posts
  referral [generate]    show or create your invite code
  invite <code>          check an invite code
  live                   toggle the websocket live feed
  quit                   exit
`
