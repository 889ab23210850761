package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// The backend throttles post creation to one per three seconds per IP.
	// Mirroring that locally means a burst of submits fails fast instead of
	// burning a round trip on a guaranteed 429.
	postRateEvery = 3 * time.Second
	postRateBurst = 1
)

// Client talks to the Anon backend. All requests are credentialed: the cookie
// jar carries the session cookie the same way a browser does with
// credentials "include".
type Client struct {
	base        string
	http        *http.Client
	postLimiter *rate.Limiter
}

// New builds a Client for the given base URL. The URL must be non-empty;
// a missing configuration value is a startup error, not something to limp
// along with.
func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL is not configured")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		base:        strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Jar: jar},
		postLimiter: rate.NewLimiter(rate.Every(postRateEvery), postRateBurst),
	}, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.base }

// do issues one JSON request. A nil in sends no body; a nil out discards the
// response body. Non-2xx responses become *Error with the backend's "detail"
// field when it sent one.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Detail = payload.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Me fetches the current session's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetUsername completes profile setup. The backend rejects a second attempt
// once a username is set.
func (c *Client) SetUsername(ctx context.Context, username, avatarSeed string) (*Profile, error) {
	var p Profile
	in := setUsernameRequest{Username: username, AvatarSeed: avatarSeed}
	if err := c.do(ctx, http.MethodPatch, "/users/me/username", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetBio replaces the current user's bio.
func (c *Client) SetBio(ctx context.Context, bio string) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPatch, "/users/me/bio", setBioRequest{Bio: bio}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PublicProfile fetches another user's profile by username.
func (c *Client) PublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	var p PublicProfile
	if err := c.do(ctx, http.MethodGet, "/users/user/"+url.PathEscape(username), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Logout invalidates the session server-side. Callers treat this as
// best-effort and clear local state regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ListPosts fetches the main feed, newest first.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/posts/", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UserPosts fetches one page of a user's posts.
func (c *Client) UserPosts(ctx context.Context, username string, limit, offset int) (*PostPage, error) {
	path := fmt.Sprintf("/posts/user/%s?limit=%d&offset=%d", url.PathEscape(username), limit, offset)
	var page PostPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreatePost submits a new anonymous post. The local limiter rejects bursts
// before any request is sent.
func (c *Client) CreatePost(ctx context.Context, content string) (*Post, error) {
	if !c.postLimiter.Allow() {
		return nil, ErrSlowDown
	}
	var post Post
	if err := c.do(ctx, http.MethodPost, "/posts/", createPostRequest{Content: content}, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes one of the caller's own posts.
func (c *Client) DeletePost(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/posts/%d", id), nil, nil)
}

// SetVote upserts the caller's vote on a post. voteType must be +1 or -1.
func (c *Client) SetVote(ctx context.Context, postID, voteType int) (*VoteResult, error) {
	var resp struct {
		Message string     `json:"message"`
		Post    VoteResult `json:"post"`
	}
	path := fmt.Sprintf("/posts/%d/vote", postID)
	if err := c.do(ctx, http.MethodPut, path, voteRequest{VoteType: voteType}, &resp); err != nil {
		return nil, err
	}
	return &resp.Post, nil
}

// RemoveVote clears the caller's vote on a post. Removing a vote that does
// not exist is a no-op server-side.
func (c *Client) RemoveVote(ctx context.Context, postID int) (*VoteResult, error) {
	var resp struct {
		Message string     `json:"message"`
		Post    VoteResult `json:"post"`
	}
	path := fmt.Sprintf("/posts/%d/vote", postID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Post, nil
}

// ReferralStats fetches the caller's referral code and counters.
func (c *Client) ReferralStats(ctx context.Context) (*ReferralStats, error) {
	var stats ReferralStats
	if err := c.do(ctx, http.MethodGet, "/referral/me", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GenerateReferral creates a referral code for the caller and returns the
// refreshed stats.
func (c *Client) GenerateReferral(ctx context.Context) (*ReferralStats, error) {
	var stats ReferralStats
	if err := c.do(ctx, http.MethodPost, "/referral/generate", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ValidateReferral checks an invite code. Invalid codes come back with
// IsValid false rather than an error.
func (c *Client) ValidateReferral(ctx context.Context, code string) (*ReferralValidation, error) {
	var v ReferralValidation
	if err := c.do(ctx, http.MethodGet, "/referral/validate/"+url.PathEscape(code), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
