package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/flowcore/taskrunner/internal/credstore"
)

// ErrNotRefreshable means the provider doesn't support refresh tokens.
var ErrNotRefreshable = errors.New("oauth: provider does not support refresh")

// ErrNoRefreshToken means a refresh was required but no refresh token is on
// file for this (provider, userId).
var ErrNoRefreshToken = errors.New("oauth: no refresh token available")

// AuthorizationRequest is the result of building an authorization URL: the
// caller must persist State (and Verifier, if PKCE) until the callback.
type AuthorizationRequest struct {
	URL      string
	State    string
	Verifier string // PKCE code_verifier, empty if the provider doesn't use PKCE
}

// Manager drives the OAuth 2.0 flow against a provider Registry and token
// Store.
type Manager struct {
	registry *Registry
	store    credstore.Store
	http     *resty.Client
}

// NewManager builds a Manager. A dedicated resty client is used (rather than
// the main HTTP pipeline) because token exchange is not subject to
// rate-limiting or pagination.
func NewManager(registry *Registry, store credstore.Store) *Manager {
	return &Manager{registry: registry, store: store, http: resty.New()}
}

func randomBase64URL(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// BuildAuthorizationURL implements spec.md §4.7's authorization URL build:
// a 16-byte state, and for PKCE providers a 32-byte verifier plus its S256
// challenge.
func (m *Manager) BuildAuthorizationURL(providerName string) (*AuthorizationRequest, error) {
	p := m.registry.Get(providerName)
	if p == nil {
		return nil, fmt.Errorf("oauth: unknown provider %q", providerName)
	}

	state, err := randomBase64URL(16)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", p.ClientID)
	q.Set("redirect_uri", p.RedirectURI)
	q.Set("state", state)
	q.Set("scope", strings.Join(p.Scopes, " "))

	var verifier string
	if p.PKCE {
		verifier, err = randomBase64URL(32)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(verifier))
		challenge := base64.RawURLEncoding.EncodeToString(sum[:])
		q.Set("code_challenge", challenge)
		q.Set("code_challenge_method", "S256")
	}

	return &AuthorizationRequest{
		URL:      p.AuthURL + "?" + q.Encode(),
		State:    state,
		Verifier: verifier,
	}, nil
}

// ExchangeCode implements spec.md §4.7's code exchange: a form-encoded POST
// to the token URL, stamping expires_at from the response's expires_in.
func (m *Manager) ExchangeCode(ctx context.Context, providerName, code, verifier string) (Tokens, error) {
	p := m.registry.Get(providerName)
	if p == nil {
		return Tokens{}, fmt.Errorf("oauth: unknown provider %q", providerName)
	}

	form := map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"client_id":    p.ClientID,
		"client_secret": p.ClientSecret,
		"redirect_uri": p.RedirectURI,
	}
	if verifier != "" {
		form["code_verifier"] = verifier
	}

	return m.postForm(ctx, p.TokenURL, form)
}

// Refresh implements spec.md §4.7's refresh: if the response omits a new
// refresh token, the prior one is retained.
func (m *Manager) Refresh(ctx context.Context, providerName string, current Tokens) (Tokens, error) {
	p := m.registry.Get(providerName)
	if p == nil {
		return Tokens{}, fmt.Errorf("oauth: unknown provider %q", providerName)
	}
	if !p.Refreshable {
		return Tokens{}, ErrNotRefreshable
	}
	if current.RefreshToken == "" {
		return Tokens{}, ErrNoRefreshToken
	}

	form := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": current.RefreshToken,
		"client_id":     p.ClientID,
		"client_secret": p.ClientSecret,
	}

	refreshed, err := m.postForm(ctx, p.TokenURL, form)
	if err != nil {
		return Tokens{}, err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}
	return refreshed, nil
}

func (m *Manager) postForm(ctx context.Context, tokenURL string, form map[string]string) (Tokens, error) {
	resp, err := m.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(form).
		Post(tokenURL)
	if err != nil {
		return Tokens{}, fmt.Errorf("oauth: token request: %w", err)
	}
	if resp.IsError() {
		return Tokens{}, fmt.Errorf("oauth: token endpoint returned %d: %s", resp.StatusCode(), resp.String())
	}

	var raw struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return Tokens{}, fmt.Errorf("oauth: decoding token response: %w", err)
	}

	t := Tokens{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		TokenType:    raw.TokenType,
		Scope:        raw.Scope,
	}
	if raw.ExpiresIn > 0 {
		t.ExpiresAt = time.Now().Unix() + raw.ExpiresIn
	}
	return t, nil
}

const tokensKey = "oauth_tokens"

func credentialName(provider, userID string) string { return provider + "-" + userID }

// LoadTokens reads the persisted tokens for (provider, userId), returning
// found=false (not an error) on a store miss, per spec.md §7's
// CREDENTIAL_NOT_FOUND handling.
func (m *Manager) LoadTokens(ctx context.Context, provider, userID string) (Tokens, bool, error) {
	raw, found, err := m.store.Get(ctx, credentialName(provider, userID), tokensKey)
	if err != nil || !found {
		return Tokens{}, found, err
	}
	t, err := unmarshalTokens(raw)
	return t, true, err
}

func (m *Manager) saveTokens(ctx context.Context, provider, userID string, t Tokens) error {
	raw, err := t.marshal()
	if err != nil {
		return err
	}
	return m.store.Set(ctx, credentialName(provider, userID), tokensKey, raw)
}

// ValidAccessToken implements spec.md §4.7's valid-token accessor: load from
// the store, refresh if within 300s of expiry (or fail if no refresh token),
// write back, and return the access token.
func (m *Manager) ValidAccessToken(ctx context.Context, provider, userID string) (string, error) {
	tokens, err := m.validTokens(ctx, provider, userID)
	if err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// ValidToken behaves like ValidAccessToken but returns the full
// golang.org/x/oauth2 token representation, so callers that need the
// granted token type (not every provider uses "Bearer") can build their own
// Authorization header via Token.Type() instead of assuming one.
func (m *Manager) ValidToken(ctx context.Context, provider, userID string) (*oauth2.Token, error) {
	tokens, err := m.validTokens(ctx, provider, userID)
	if err != nil {
		return nil, err
	}
	return tokens.ToOAuth2Token(), nil
}

func (m *Manager) validTokens(ctx context.Context, provider, userID string) (Tokens, error) {
	tokens, found, err := m.LoadTokens(ctx, provider, userID)
	if err != nil {
		return Tokens{}, err
	}
	if !found {
		return Tokens{}, fmt.Errorf("oauth: no credentials for %s/%s", provider, userID)
	}

	if tokens.NeedsRefresh(time.Now()) {
		refreshed, err := m.Refresh(ctx, provider, tokens)
		if err != nil {
			return Tokens{}, err
		}
		if err := m.saveTokens(ctx, provider, userID, refreshed); err != nil {
			return Tokens{}, err
		}
		return refreshed, nil
	}

	if tokens.ExpiresAt != 0 && time.Unix(tokens.ExpiresAt, 0).Before(time.Now().Add(refreshWindow)) && tokens.RefreshToken == "" {
		return Tokens{}, fmt.Errorf("oauth: access token for %s/%s expires within the refresh window and no refresh token on file", provider, userID)
	}

	return tokens, nil
}

// StoreInitialTokens persists the result of the initial code exchange.
func (m *Manager) StoreInitialTokens(ctx context.Context, provider, userID string, t Tokens) error {
	return m.saveTokens(ctx, provider, userID, t)
}
