// Package library merges the catalogs of every account a user has linked.
package library

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dgellow/gamefront/internal/catalog"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/ledger"
	"github.com/dgellow/gamefront/internal/log"
	"github.com/dgellow/gamefront/internal/session"
	"golang.org/x/sync/errgroup"
)

// ErrUnauthorized is returned when there is no active session
var ErrUnauthorized = errors.New("unauthorized")

// Result is the merged, deduplicated library
type Result struct {
	Games      []catalog.Game `json:"games"`
	TotalCount int            `json:"totalCount"`
}

// Gateway fans out to the catalog fetchers of each linked account
type Gateway struct {
	fetchers     *catalog.Registry
	fetchTimeout time.Duration
}

// NewGateway creates a gateway. A zero fetchTimeout leaves fetches bounded
// only by the request context.
func NewGateway(fetchers *catalog.Registry, fetchTimeout time.Duration) *Gateway {
	return &Gateway{
		fetchers:     fetchers,
		fetchTimeout: fetchTimeout,
	}
}

// GetGames returns the union of the catalogs behind accounts. With no linked
// accounts the session identity itself is the only source.
func (g *Gateway) GetGames(ctx context.Context, sess *session.Session, accounts []ledger.LinkedAccount) (*Result, error) {
	if sess == nil {
		return nil, ErrUnauthorized
	}

	creds := credentials(sess.Identity, accounts)
	if g.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.fetchTimeout)
		defer cancel()
	}

	// one slot per credential so the merge follows ledger order
	results := make([][]catalog.Game, len(creds))
	var eg errgroup.Group
	for i, cred := range creds {
		eg.Go(func() error {
			results[i] = g.fetch(ctx, cred)
			return nil
		})
	}
	_ = eg.Wait()

	games := Merge(results...)
	log.LogDebugWithFields("library", "Library assembled", map[string]any{
		"sources": len(creds),
		"games":   len(games),
	})
	return &Result{Games: games, TotalCount: len(games)}, nil
}

func (g *Gateway) fetch(ctx context.Context, cred catalog.Credential) []catalog.Game {
	fetcher, ok := g.fetchers.Get(cred.Provider)
	if !ok {
		log.LogDebugWithFields("library", "No catalog for provider", map[string]any{
			"provider": cred.Provider,
		})
		return nil
	}
	games, err := fetcher.Fetch(ctx, cred)
	if err != nil {
		log.LogWarnWithFields("library", "Catalog fetch failed", map[string]any{
			"provider":   cred.Provider,
			"providerId": cred.ProviderID,
			"error":      err.Error(),
		})
		return nil
	}
	return games
}

func credentials(identity idp.Identity, accounts []ledger.LinkedAccount) []catalog.Credential {
	if len(accounts) == 0 {
		return []catalog.Credential{{
			Provider:    identity.Provider,
			ProviderID:  identity.ProviderID,
			AccessToken: identity.AccessToken,
		}}
	}
	creds := make([]catalog.Credential, 0, len(accounts))
	for _, a := range accounts {
		creds = append(creds, catalog.Credential{
			Provider:    a.Provider,
			ProviderID:  a.ProviderID,
			AccessToken: a.AccessToken,
		})
	}
	return creds
}

// Merge concatenates lists in order, keeping only the first game of each
// case-insensitive name.
func Merge(lists ...[]catalog.Game) []catalog.Game {
	seen := make(map[string]struct{})
	merged := []catalog.Game{}
	for _, list := range lists {
		for _, game := range list {
			key := strings.ToLower(game.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, game)
		}
	}
	return merged
}
