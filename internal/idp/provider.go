package idp

import (
	"context"
	"net/url"
	"slices"
)

// ProviderType identifies a game platform identity provider
type ProviderType string

const (
	ProviderSteam ProviderType = "steam"
	ProviderEpic  ProviderType = "epic"
	ProviderGOG   ProviderType = "gog"
	ProviderPSN   ProviderType = "psn"
	ProviderXbox  ProviderType = "xbox"
)

var knownProviders = []ProviderType{ProviderSteam, ProviderEpic, ProviderGOG, ProviderPSN, ProviderXbox}

// ParseProviderType maps a path segment like "steam" to a ProviderType
func ParseProviderType(s string) (ProviderType, bool) {
	t := ProviderType(s)
	if slices.Contains(knownProviders, t) {
		return t, true
	}
	return "", false
}

// Identity is the normalized result of a completed provider flow.
// Tokens are only set by OAuth2 providers.
type Identity struct {
	Provider     ProviderType `json:"provider"`
	ProviderID   string       `json:"providerId"`
	DisplayName  string       `json:"name"`
	AvatarURL    string       `json:"image,omitempty"`
	Email        string       `json:"email,omitempty"`
	AccessToken  string       `json:"accessToken,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
}

// LoginRedirect is where the browser goes to start a provider flow.
// State is empty for providers without an anti-forgery token.
type LoginRedirect struct {
	URL   string
	State string
}

// Provider abstracts a platform sign-in protocol.
type Provider interface {
	// Type returns the provider type identifier.
	Type() ProviderType

	// BeginLogin builds the redirect to the provider's identity server.
	BeginLogin() (LoginRedirect, error)

	// UsesState reports whether BeginLogin issues a state token that
	// HandleCallback checks.
	UsesState() bool

	// HandleCallback verifies the provider's callback parameters and returns the
	// signed-in identity. storedState is the state saved by BeginLogin, if any.
	HandleCallback(ctx context.Context, params url.Values, storedState string) (*Identity, error)
}

// Registry dispatches to providers by type
type Registry struct {
	providers map[ProviderType]Provider
}

// NewRegistry builds a registry. Later providers replace earlier ones of the same type.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[ProviderType]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// Get returns the provider registered for t
func (r *Registry) Get(t ProviderType) (Provider, bool) {
	p, ok := r.providers[t]
	return p, ok
}

// Types lists registered provider types in a stable order
func (r *Registry) Types() []ProviderType {
	var types []ProviderType
	for _, t := range knownProviders {
		if _, ok := r.providers[t]; ok {
			types = append(types, t)
		}
	}
	return types
}
