package api

import "time"

// Profile is the authenticated user's own record as returned by /users/me.
// Username, Bio and AvatarSeed stay nil until profile setup completes.
type Profile struct {
	ID           int      `json:"id"`
	Username     *string  `json:"username"`
	IsWaitListed bool     `json:"is_wait_listed"`
	Tags         []string `json:"tags"`
	Bio          *string  `json:"bio"`
	AvatarSeed   *string  `json:"avatar_seed"`
}

// HasUsername reports whether profile setup has been completed.
func (p *Profile) HasUsername() bool {
	return p != nil && p.Username != nil && *p.Username != ""
}

// PublicProfile is another user's profile as returned by /users/user/{username}.
type PublicProfile struct {
	ID           int      `json:"id"`
	Username     string   `json:"username"`
	IsWaitListed bool     `json:"is_wait_listed"`
	Tags         []string `json:"tags"`
	Bio          *string  `json:"bio"`
	AvatarSeed   *string  `json:"avatar_seed"`
}

// Author identifies the writer of a post.
type Author struct {
	AuthorID   int     `json:"author_id"`
	Username   string  `json:"username"`
	AvatarSeed *string `json:"avatar_seed"`
}

// Post is a feed entry. Score is the aggregate over all voters; UserVote is
// only the viewing user's own vote (+1, -1 or nil) and is independent of Score.
type Post struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    Author    `json:"author"`
	Score     int       `json:"score"`
	UserVote  *int      `json:"user_vote"`
}

// PostPage is one page of a user's posts. Total is the count across all pages.
type PostPage struct {
	Items []Post `json:"items"`
	Total int    `json:"total"`
}

// VoteResult is the authoritative post state returned by the vote endpoints.
// Score is server-computed; the client must reconcile with it rather than
// trust its own prediction.
type VoteResult struct {
	ID       int  `json:"id"`
	Score    int  `json:"score"`
	UserVote *int `json:"user_vote"`
}

// ReferralStats are the caller's own referral counters. The server is
// authoritative for all four fields; the client never derives one from the
// others.
type ReferralStats struct {
	ReferralCode        *string `json:"referral_code"`
	TotalReferrals      int     `json:"total_referrals"`
	SuccessfulReferrals int     `json:"successful_referrals"`
	RemainingReferrals  int     `json:"remaining_referrals"`
}

// ReferralValidation is the result of checking an invite code.
type ReferralValidation struct {
	IsValid          bool    `json:"is_valid"`
	Code             *string `json:"code,omitempty"`
	ReferrerUsername *string `json:"referrer_username,omitempty"`
	RemainingUses    *int    `json:"remaining_uses,omitempty"`
}

// Request bodies.

type createPostRequest struct {
	Content string `json:"content"`
}

type setUsernameRequest struct {
	Username   string `json:"username"`
	AvatarSeed string `json:"avatar_seed"`
}

type setBioRequest struct {
	Bio string `json:"bio"`
}

type voteRequest struct {
	VoteType int `json:"vote_type"`
}
