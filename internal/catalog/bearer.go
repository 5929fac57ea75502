package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// EpicFetcher lists the Epic Games library of the token's account
type EpicFetcher struct {
	libraryURL string
	client     *http.Client
}

type epicLibrary struct {
	Records []struct {
		CatalogItemID string `json:"catalogItemId"`
		AppName       string `json:"appName"`
		DisplayName   string `json:"displayName"`
		Metadata      struct {
			KeyImages []struct {
				URL string `json:"url"`
			} `json:"keyImages"`
			Categories labelList `json:"categories"`
			Genres     labelList `json:"genres"`
		} `json:"metadata"`
	} `json:"records"`
}

// NewEpicFetcher creates an Epic catalog fetcher
func NewEpicFetcher() *EpicFetcher {
	return &EpicFetcher{
		libraryURL: "https://api.epicgames.dev/epic/oauth/v2/library",
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *EpicFetcher) Fetch(ctx context.Context, cred Credential) ([]Game, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("epic: %w: no access token", ErrMissingCredential)
	}

	var library epicLibrary
	if err := getJSON(ctx, f.client, f.libraryURL, cred.AccessToken, &library); err != nil {
		return nil, fmt.Errorf("epic: library: %w", err)
	}

	games := make([]Game, 0, len(library.Records))
	for _, r := range library.Records {
		name := r.AppName
		if name == "" {
			name = r.DisplayName
		}
		game := Game{
			ID:         "epic_" + r.CatalogItemID,
			Name:       name,
			Platform:   "Epic Games",
			Categories: r.Metadata.Categories,
			Tags:       r.Metadata.Genres,
		}
		if len(r.Metadata.KeyImages) > 0 {
			game.Image = r.Metadata.KeyImages[0].URL
		}
		games = append(games, game)
	}
	return games, nil
}

// GOGFetcher lists the GOG library of the token's account
type GOGFetcher struct {
	gamesURL string
	client   *http.Client
}

type gogGames struct {
	Games []struct {
		ID     json.Number `json:"id"`
		Title  string      `json:"title"`
		Images struct {
			Logo string `json:"logo"`
		} `json:"images"`
	} `json:"games"`
}

// NewGOGFetcher creates a GOG catalog fetcher
func NewGOGFetcher() *GOGFetcher {
	return &GOGFetcher{
		gamesURL: "https://api.gog.com/users/me/games",
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *GOGFetcher) Fetch(ctx context.Context, cred Credential) ([]Game, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("gog: %w: no access token", ErrMissingCredential)
	}

	var resp gogGames
	if err := getJSON(ctx, f.client, f.gamesURL, cred.AccessToken, &resp); err != nil {
		return nil, fmt.Errorf("gog: games: %w", err)
	}

	games := make([]Game, 0, len(resp.Games))
	for _, g := range resp.Games {
		games = append(games, Game{
			ID:       "gog_" + g.ID.String(),
			Name:     g.Title,
			Platform: "GOG",
			Image:    g.Images.Logo,
		})
	}
	return games, nil
}

// PSNFetcher only checks that the token is accepted. PlayStation Network has
// no owned-games listing to read, so the result is always empty.
type PSNFetcher struct {
	profileURL string
	client     *http.Client
}

// NewPSNFetcher creates a PSN fetcher
func NewPSNFetcher() *PSNFetcher {
	return &PSNFetcher{
		profileURL: "https://psn.np.community.playstation.net/userProfile/v2/me/profile2",
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *PSNFetcher) Fetch(ctx context.Context, cred Credential) ([]Game, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("psn: %w: no access token", ErrMissingCredential)
	}
	if err := getJSON(ctx, f.client, f.profileURL, cred.AccessToken, nil); err != nil {
		return nil, fmt.Errorf("psn: profile: %w", err)
	}
	return []Game{}, nil
}

// XboxFetcher lists the Xbox title library of the token's account
type XboxFetcher struct {
	libraryURL string
	client     *http.Client
}

type xboxLibrary struct {
	Titles []struct {
		TitleID      json.Number `json:"titleId"`
		Name         string      `json:"name"`
		DisplayImage string      `json:"displayImage"`
	} `json:"titles"`
}

// NewXboxFetcher creates an Xbox catalog fetcher
func NewXboxFetcher() *XboxFetcher {
	return &XboxFetcher{
		libraryURL: "https://xboxlive.proxycon.xbox.com/users/me/library",
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *XboxFetcher) Fetch(ctx context.Context, cred Credential) ([]Game, error) {
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("xbox: %w: no access token", ErrMissingCredential)
	}

	var library xboxLibrary
	if err := getJSON(ctx, f.client, f.libraryURL, cred.AccessToken, &library); err != nil {
		return nil, fmt.Errorf("xbox: library: %w", err)
	}

	games := make([]Game, 0, len(library.Titles))
	for _, t := range library.Titles {
		games = append(games, Game{
			ID:       "xbox_" + t.TitleID.String(),
			Name:     t.Name,
			Platform: "Xbox",
			Image:    t.DisplayImage,
		})
	}
	return games, nil
}
