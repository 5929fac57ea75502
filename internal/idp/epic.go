package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/gamefront/internal/oauthstate"
	"golang.org/x/oauth2"
)

// DefaultEpicLauncherURL hosts Epic's OAuth2 and account endpoints
const DefaultEpicLauncherURL = "https://launcher.epicgames.com"

// EpicEndpoint is Epic Games' launcher OAuth2 endpoint
var EpicEndpoint = epicEndpoint(DefaultEpicLauncherURL)

func epicEndpoint(launcherURL string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   launcherURL + "/oauth/authorize",
		TokenURL:  launcherURL + "/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// EpicProvider implements Epic Games sign-in over the OAuth2 authorization code flow.
type EpicProvider struct {
	config     oauth2.Config
	accountURL string // defaults to the launcher account API, can be overridden for testing
	client     *http.Client
}

type epicAccountResponse struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Picture   string `json:"picture"`
}

// NewEpicProvider creates an Epic provider. redirectURI is <base>/api/epic/callback.
func NewEpicProvider(clientID, clientSecret, redirectURI string) *EpicProvider {
	return &EpicProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     EpicEndpoint,
		},
		accountURL: DefaultEpicLauncherURL + "/api/v2/user/account",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// WithLauncherURL points the token, authorize and account endpoints at
// another launcher host, such as a staging deployment or a local fake.
func (p *EpicProvider) WithLauncherURL(launcherURL string) *EpicProvider {
	launcherURL = strings.TrimRight(launcherURL, "/")
	p.config.Endpoint = epicEndpoint(launcherURL)
	p.accountURL = launcherURL + "/api/v2/user/account"
	return p
}

// UsesState reports true: the authorize request carries a state token.
func (p *EpicProvider) UsesState() bool {
	return true
}

// Type returns the provider type.
func (p *EpicProvider) Type() ProviderType {
	return ProviderEpic
}

// BeginLogin issues a state token and builds the authorize URL.
func (p *EpicProvider) BeginLogin() (LoginRedirect, error) {
	if p.config.ClientID == "" {
		return LoginRedirect{}, configurationError(CodeNotConfigured)
	}

	state, err := oauthstate.Issue()
	if err != nil {
		return LoginRedirect{}, fmt.Errorf("issuing state token: %w", err)
	}

	return LoginRedirect{URL: p.config.AuthCodeURL(state), State: state}, nil
}

// HandleCallback validates the callback, exchanges the code and loads the account.
func (p *EpicProvider) HandleCallback(ctx context.Context, params url.Values, storedState string) (*Identity, error) {
	if providerErr := params.Get("error"); providerErr != "" {
		return nil, protocolError("epic_"+providerErr, fmt.Errorf("%w: %s", ErrProviderError, providerErr))
	}

	code := params.Get("code")
	if code == "" {
		return nil, protocolError(CodeMissingCode, ErrMissingCode)
	}

	if !oauthstate.Verify(params.Get("state"), storedState) {
		return nil, protocolError(CodeInvalidState, ErrInvalidState)
	}

	if p.config.ClientID == "" || p.config.ClientSecret == "" {
		return nil, configurationError(CodeNotConfigured)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, upstreamError(CodeEpicAuthFailed, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err))
	}

	account, err := p.fetchAccount(ctx, token)
	if err != nil {
		return nil, upstreamError(CodeEpicAuthFailed, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err))
	}

	return &Identity{
		Provider:     ProviderEpic,
		ProviderID:   account.AccountID,
		DisplayName:  account.Name,
		AvatarURL:    account.Picture,
		Email:        account.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

func (p *EpicProvider) fetchAccount(ctx context.Context, token *oauth2.Token) (*epicAccountResponse, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.accountURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get account: status %d", resp.StatusCode)
	}

	var account epicAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	if account.AccountID == "" {
		return nil, fmt.Errorf("account response has no account_id")
	}

	return &account, nil
}
