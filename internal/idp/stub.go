package idp

import (
	"context"
	"net/url"
)

// StubProvider stands in for platforms without a sign-in integration yet
// (GOG, PlayStation Network, Xbox). Every call reports not_supported.
type StubProvider struct {
	providerType ProviderType
}

// NewStubProvider creates a stub for t.
func NewStubProvider(t ProviderType) *StubProvider {
	return &StubProvider{providerType: t}
}

func (p *StubProvider) Type() ProviderType {
	return p.providerType
}

func (p *StubProvider) BeginLogin() (LoginRedirect, error) {
	return LoginRedirect{}, protocolError(CodeNotSupported, ErrNotSupported)
}

func (p *StubProvider) UsesState() bool {
	return false
}

func (p *StubProvider) HandleCallback(context.Context, url.Values, string) (*Identity, error) {
	return nil, protocolError(CodeNotSupported, ErrNotSupported)
}
