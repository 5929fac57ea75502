package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dgellow/gamefront/internal/log"
)

// SteamFetcher lists owned games through the Steam Web API and enriches the
// first EnrichLimit of them with store categories and genres.
type SteamFetcher struct {
	apiKey       string
	apiBaseURL   string // defaults to https://api.steampowered.com, can be overridden for testing
	storeBaseURL string // defaults to https://store.steampowered.com, can be overridden for testing
	client       *http.Client
	enrichLimit  int
	enrichDelay  time.Duration
}

type steamOwnedGames struct {
	Response struct {
		Games []struct {
			AppID           int    `json:"appid"`
			Name            string `json:"name"`
			PlaytimeForever int    `json:"playtime_forever"`
		} `json:"games"`
	} `json:"response"`
}

type steamAppDetails map[string]struct {
	Success bool `json:"success"`
	Data    *struct {
		Categories labelList `json:"categories"`
		Genres     labelList `json:"genres"`
	} `json:"data"`
}

// NewSteamFetcher creates a Steam catalog fetcher
func NewSteamFetcher(apiKey string, enrichLimit int, enrichDelay time.Duration) *SteamFetcher {
	return &SteamFetcher{
		apiKey:       apiKey,
		apiBaseURL:   "https://api.steampowered.com",
		storeBaseURL: "https://store.steampowered.com",
		client:       &http.Client{Timeout: 15 * time.Second},
		enrichLimit:  enrichLimit,
		enrichDelay:  enrichDelay,
	}
}

// Fetch implements Fetcher. Store lookups run one at a time with enrichDelay
// between them; a failed lookup leaves that game without categories.
func (f *SteamFetcher) Fetch(ctx context.Context, cred Credential) ([]Game, error) {
	if cred.ProviderID == "" {
		return nil, fmt.Errorf("steam: %w: no steam id", ErrMissingCredential)
	}
	if f.apiKey == "" {
		return nil, fmt.Errorf("steam: %w: no api key", ErrMissingCredential)
	}

	query := url.Values{
		"key":                       {f.apiKey},
		"steamid":                   {cred.ProviderID},
		"include_appinfo":           {"true"},
		"include_played_free_games": {"true"},
	}
	var owned steamOwnedGames
	if err := getJSON(ctx, f.client, f.apiBaseURL+"/IPlayerService/GetOwnedGames/v1/?"+query.Encode(), "", &owned); err != nil {
		return nil, fmt.Errorf("steam: owned games: %w", err)
	}

	games := make([]Game, 0, len(owned.Response.Games))
	for i, g := range owned.Response.Games {
		appID := strconv.Itoa(g.AppID)
		playtime := g.PlaytimeForever
		game := Game{
			ID:              "steam_" + appID,
			Name:            g.Name,
			Platform:        "Steam",
			Image:           "https://cdn.cloudflare.steamstatic.com/steam/apps/" + appID + "/header.jpg",
			PlaytimeMinutes: &playtime,
		}

		if i < f.enrichLimit {
			if i > 0 && f.enrichDelay > 0 {
				if err := sleep(ctx, f.enrichDelay); err != nil {
					return nil, err
				}
			}
			categories, tags, err := f.appDetails(ctx, appID)
			if err != nil {
				log.LogDebugWithFields("catalog", "Steam store details unavailable", map[string]any{
					"appId": appID,
					"error": err.Error(),
				})
			}
			game.Categories = categories
			game.Tags = tags
		}

		games = append(games, game)
	}
	return games, nil
}

func (f *SteamFetcher) appDetails(ctx context.Context, appID string) (categories, tags []string, err error) {
	var details steamAppDetails
	if err := getJSON(ctx, f.client, f.storeBaseURL+"/api/appdetails?appids="+url.QueryEscape(appID), "", &details); err != nil {
		return nil, nil, err
	}
	entry, ok := details[appID]
	if !ok || entry.Data == nil {
		return nil, nil, nil
	}
	return entry.Data.Categories, entry.Data.Genres, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
