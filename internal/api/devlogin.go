package api

import (
	"context"
	"net/http"
)

// DevLogin signs in against the dev backend's email-only login and stores the
// session cookie in the jar. Production signs in through the OAuth redirect
// flow instead, outside this client; only local development and tests use
// this.
func (c *Client) DevLogin(ctx context.Context, email, referralCode string) (*Profile, error) {
	in := struct {
		Email        string `json:"email"`
		ReferralCode string `json:"referral_code,omitempty"`
	}{Email: email, ReferralCode: referralCode}

	var p Profile
	if err := c.do(ctx, http.MethodPost, "/auth/dev-login", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
