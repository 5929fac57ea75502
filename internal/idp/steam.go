package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dgellow/gamefront/internal/log"
)

const (
	openIDNamespace      = "http://specs.openid.net/auth/2.0"
	openIDIdentifierAuto = "http://specs.openid.net/auth/2.0/identifier_select"
)

var steamClaimedIDPattern = regexp.MustCompile(`/id/(\d+)$`)

// SteamProvider implements Steam sign-in over OpenID 2.0.
// Steam has no state parameter; the assertion is verified by asking Steam directly.
type SteamProvider struct {
	baseURL        string
	apiKey         string
	openIDEndpoint string // defaults to https://steamcommunity.com/openid/login, can be overridden for testing
	apiBaseURL     string // defaults to https://api.steampowered.com, can be overridden for testing
	client         *http.Client
}

type steamPlayer struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	AvatarFull  string `json:"avatarfull"`
}

type steamPlayerSummaries struct {
	Response struct {
		Players []steamPlayer `json:"players"`
	} `json:"response"`
}

// NewSteamProvider creates a Steam provider. baseURL is gamefront's public URL.
func NewSteamProvider(baseURL, apiKey string) *SteamProvider {
	return &SteamProvider{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		openIDEndpoint: "https://steamcommunity.com/openid/login",
		apiBaseURL:     "https://api.steampowered.com",
		client:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Type returns the provider type.
func (p *SteamProvider) Type() ProviderType {
	return ProviderSteam
}

// BeginLogin builds the checkid_setup redirect.
func (p *SteamProvider) BeginLogin() (LoginRedirect, error) {
	params := url.Values{
		"openid.ns":         {openIDNamespace},
		"openid.mode":       {"checkid_setup"},
		"openid.return_to":  {p.baseURL + "/api/steam/callback"},
		"openid.realm":      {p.baseURL},
		"openid.identity":   {openIDIdentifierAuto},
		"openid.claimed_id": {openIDIdentifierAuto},
	}
	return LoginRedirect{URL: p.openIDEndpoint + "?" + params.Encode()}, nil
}

// UsesState reports false: OpenID 2.0 assertions are checked with Steam directly.
func (p *SteamProvider) UsesState() bool {
	return false
}

// HandleCallback verifies the positive assertion and loads the player profile.
func (p *SteamProvider) HandleCallback(ctx context.Context, params url.Values, _ string) (*Identity, error) {
	match := steamClaimedIDPattern.FindStringSubmatch(params.Get("openid.claimed_id"))
	if match == nil {
		return nil, protocolError(CodeNoSteamID, ErrMissingIdentity)
	}
	steamID := match[1]

	if params.Get("openid.mode") != "id_res" {
		return nil, protocolError(CodeInvalidMode, fmt.Errorf("%w: %q", ErrInvalidMode, params.Get("openid.mode")))
	}

	if err := p.verifyAssertion(ctx, params); err != nil {
		return nil, err
	}

	if p.apiKey == "" {
		return nil, configurationError(CodeNoAPIKey)
	}

	player, err := p.fetchPlayer(ctx, steamID)
	if err != nil {
		return nil, err
	}

	log.LogDebugWithFields("steam", "Steam identity verified", map[string]any{
		"steamId": steamID,
	})

	return &Identity{
		Provider:    ProviderSteam,
		ProviderID:  steamID,
		DisplayName: player.PersonaName,
		AvatarURL:   player.AvatarFull,
		Email:       steamID + "@steamcommunity.com",
	}, nil
}

// verifyAssertion replays the received parameters with mode check_authentication.
func (p *SteamProvider) verifyAssertion(ctx context.Context, params url.Values) error {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.openIDEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return upstreamError(CodeUnknown, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return upstreamError(CodeUnknown, fmt.Errorf("verification request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return upstreamError(CodeUnknown, fmt.Errorf("reading verification response: %w", err))
	}

	if !strings.Contains(string(body), "is_valid:true") {
		return protocolError(CodeVerificationFailed, ErrVerificationFailed)
	}
	return nil
}

func (p *SteamProvider) fetchPlayer(ctx context.Context, steamID string) (*steamPlayer, error) {
	query := url.Values{"key": {p.apiKey}, "steamids": {steamID}}
	endpoint := p.apiBaseURL + "/ISteamUser/GetPlayerSummaries/v0002/?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, upstreamError(CodeUnknown, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, upstreamError(CodeUnknown, fmt.Errorf("player summaries request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(CodeUnknown, fmt.Errorf("player summaries: status %d", resp.StatusCode))
	}

	var summaries steamPlayerSummaries
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return nil, upstreamError(CodeUnknown, fmt.Errorf("decoding player summaries: %w", err))
	}

	if len(summaries.Response.Players) == 0 {
		return nil, protocolError(CodeNoPlayerData, ErrNoProfileData)
	}
	return &summaries.Response.Players[0], nil
}
