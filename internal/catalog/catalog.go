// Package catalog fetches a platform's owned-games list for one linked account
// and normalizes it into Game records.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dgellow/gamefront/internal/idp"
)

// Game is a normalized catalog entry
type Game struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Platform        string   `json:"platform"`
	Image           string   `json:"image,omitempty"`
	PlaytimeMinutes *int     `json:"playtimeMinutes,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Credential identifies whose catalog to fetch. Steam needs only the
// ProviderID; the OAuth platforms need the AccessToken.
type Credential struct {
	Provider    idp.ProviderType
	ProviderID  string
	AccessToken string
}

// ErrMissingCredential is returned when the credential lacks what the platform needs
var ErrMissingCredential = errors.New("credential missing")

// Fetcher loads one platform's catalog
type Fetcher interface {
	Fetch(ctx context.Context, cred Credential) ([]Game, error)
}

// Registry maps providers to fetchers
type Registry struct {
	fetchers map[idp.ProviderType]Fetcher
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[idp.ProviderType]Fetcher)}
}

// Register adds or replaces the fetcher for provider
func (r *Registry) Register(provider idp.ProviderType, f Fetcher) {
	r.fetchers[provider] = f
}

// Get returns the fetcher for provider
func (r *Registry) Get(provider idp.ProviderType) (Fetcher, bool) {
	f, ok := r.fetchers[provider]
	return f, ok
}

// getJSON issues a GET, optionally with a bearer token, and decodes a 200 response into v
func getJSON(ctx context.Context, client *http.Client, endpoint, bearer string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s", req.URL.Path, resp.StatusCode, body)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", req.URL.Path, err)
	}
	return nil
}

// labelList decodes a list of labels given either as strings or as objects
// carrying a description, name or path.
type labelList []string

func (l *labelList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Description string `json:"description"`
			Name        string `json:"name"`
			Path        string `json:"path"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		switch {
		case obj.Description != "":
			out = append(out, obj.Description)
		case obj.Name != "":
			out = append(out, obj.Name)
		case obj.Path != "":
			out = append(out, obj.Path)
		}
	}
	*l = out
	return nil
}
