// Package oauth implements the OAuth 2.0 authorization-code + PKCE flow and
// token lifecycle of spec.md §4.7: authorization URL construction, code
// exchange, refresh, and a valid-token accessor that refreshes on the
// caller's behalf when a token is within 300s of expiry.
package oauth

// Provider is a named static descriptor for an OAuth 2.0 identity provider.
type Provider struct {
	Name         string
	AuthURL      string
	TokenURL     string
	Scopes       []string
	PKCE         bool
	Refreshable  bool
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Registry is the minimum provider set spec.md §6 requires: Google, GitHub,
// Stripe, Slack. Callers register their own client id/secret/redirect via
// Configure before use.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry seeds a Registry with the built-in provider descriptors.
func NewRegistry() *Registry {
	r := &Registry{providers: map[string]*Provider{}}
	r.register(&Provider{
		Name:        "google",
		AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
		Scopes:      []string{"openid", "email", "profile"},
		PKCE:        true,
		Refreshable: true,
	})
	r.register(&Provider{
		Name:        "github",
		AuthURL:     "https://github.com/login/oauth/authorize",
		TokenURL:    "https://github.com/login/oauth/access_token",
		Scopes:      []string{"repo", "read:org"},
		PKCE:        false,
		Refreshable: false,
	})
	r.register(&Provider{
		Name:        "stripe",
		AuthURL:     "https://connect.stripe.com/oauth/authorize",
		TokenURL:    "https://connect.stripe.com/oauth/token",
		Scopes:      []string{"read_write"},
		PKCE:        false,
		Refreshable: true,
	})
	r.register(&Provider{
		Name:        "slack",
		AuthURL:     "https://slack.com/oauth/v2/authorize",
		TokenURL:    "https://slack.com/api/oauth.v2.access",
		Scopes:      []string{"chat:write", "channels:read"},
		PKCE:        false,
		Refreshable: true,
	})
	return r
}

func (r *Registry) register(p *Provider) { r.providers[p.Name] = p }

// Configure overrides a built-in provider's client credentials and redirect
// URI, or registers a brand-new provider under name.
func (r *Registry) Configure(name string, clientID, clientSecret, redirectURI string) *Provider {
	p, ok := r.providers[name]
	if !ok {
		p = &Provider{Name: name, PKCE: true, Refreshable: true}
		r.providers[name] = p
	}
	p.ClientID = clientID
	p.ClientSecret = clientSecret
	p.RedirectURI = redirectURI
	return p
}

// Get returns the named provider descriptor, or nil if unknown.
func (r *Registry) Get(name string) *Provider { return r.providers[name] }
