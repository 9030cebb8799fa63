package oauth

import (
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// Tokens is the OAuth token set persisted per (provider, userId), per
// spec.md §3. It is intentionally a thin wrapper around golang.org/x/oauth2's
// Token so the expiry/refresh bookkeeping matches the ecosystem convention.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"` // unix seconds, 0 == unknown/never
	TokenType    string `json:"tokenType,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// refreshWindow is spec.md §4's "expires_at <= now + 300s" refresh trigger.
const refreshWindow = 300 * time.Second

// NeedsRefresh reports whether t is within refreshWindow of expiry (or
// already expired) and a refresh token is available.
func (t Tokens) NeedsRefresh(now time.Time) bool {
	if t.ExpiresAt == 0 {
		return false
	}
	return time.Unix(t.ExpiresAt, 0).Before(now.Add(refreshWindow)) && t.RefreshToken != ""
}

// ToOAuth2Token adapts Tokens to the golang.org/x/oauth2 representation, for
// interop with code that consumes *oauth2.Token directly.
func (t Tokens) ToOAuth2Token() *oauth2.Token {
	var expiry time.Time
	if t.ExpiresAt != 0 {
		expiry = time.Unix(t.ExpiresAt, 0)
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       expiry,
	}
}

func (t Tokens) marshal() (string, error) {
	b, err := json.Marshal(t)
	return string(b), err
}

func unmarshalTokens(raw string) (Tokens, error) {
	var t Tokens
	err := json.Unmarshal([]byte(raw), &t)
	return t, err
}
