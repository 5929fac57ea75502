package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgellow/gamefront/internal/catalog"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/ledger"
	"github.com/dgellow/gamefront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []catalog.Credential
	games map[string][]catalog.Game
	err   error
	delay time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, cred catalog.Credential) ([]catalog.Game, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cred)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.games[cred.ProviderID], nil
}

func steamSession() *session.Session {
	return &session.Session{
		ID:       "s-1",
		Identity: idp.Identity{Provider: idp.ProviderSteam, ProviderID: "7656", DisplayName: "gordon"},
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		lists    [][]catalog.Game
		expected []string
	}{
		{
			name:     "empty",
			expected: []string{},
		},
		{
			name: "case insensitive first wins",
			lists: [][]catalog.Game{
				{{ID: "steam_400", Name: "Portal"}},
				{{ID: "epic_p", Name: "portal"}, {ID: "epic_hl", Name: "Half-Life"}},
			},
			expected: []string{"Portal", "Half-Life"},
		},
		{
			name: "duplicates within one list",
			lists: [][]catalog.Game{
				{{Name: "Doom"}, {Name: "DOOM"}, {Name: "Quake"}},
			},
			expected: []string{"Doom", "Quake"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := Merge(tt.lists...)
			names := make([]string, 0, len(merged))
			for _, g := range merged {
				names = append(names, g.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestGetGames_NoSession(t *testing.T) {
	g := NewGateway(catalog.NewRegistry(), 0)
	_, err := g.GetGames(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetGames_FallsBackToSessionIdentity(t *testing.T) {
	steam := &fakeFetcher{games: map[string][]catalog.Game{
		"7656": {{ID: "steam_400", Name: "Portal"}, {ID: "steam_70", Name: "Half-Life"}},
	}}
	registry := catalog.NewRegistry()
	registry.Register(idp.ProviderSteam, steam)

	result, err := NewGateway(registry, time.Second).GetGames(context.Background(), steamSession(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalCount)
	assert.Len(t, result.Games, result.TotalCount)
	require.Len(t, steam.calls, 1)
	assert.Equal(t, "7656", steam.calls[0].ProviderID)
}

func TestGetGames_MergesInLedgerOrder(t *testing.T) {
	steam := &fakeFetcher{
		delay: 20 * time.Millisecond,
		games: map[string][]catalog.Game{
			"7656": {{ID: "steam_400", Name: "Portal", Platform: "Steam"}},
		},
	}
	epic := &fakeFetcher{games: map[string][]catalog.Game{
		"e-1": {{ID: "epic_p", Name: "portal", Platform: "Epic Games"}, {ID: "epic_hl", Name: "Half-Life", Platform: "Epic Games"}},
	}}
	registry := catalog.NewRegistry()
	registry.Register(idp.ProviderSteam, steam)
	registry.Register(idp.ProviderEpic, epic)

	accounts := []ledger.LinkedAccount{
		{Provider: idp.ProviderSteam, ProviderID: "7656", Name: "gordon"},
		{Provider: idp.ProviderEpic, ProviderID: "e-1", Name: "gordon", AccessToken: "tok"},
	}
	result, err := NewGateway(registry, time.Second).GetGames(context.Background(), steamSession(), accounts)
	require.NoError(t, err)

	require.Len(t, result.Games, 2)
	assert.Equal(t, "Portal", result.Games[0].Name)
	assert.Equal(t, "Steam", result.Games[0].Platform)
	assert.Equal(t, "Half-Life", result.Games[1].Name)
	assert.Equal(t, 2, result.TotalCount)

	require.Len(t, epic.calls, 1)
	assert.Equal(t, "tok", epic.calls[0].AccessToken)
}

func TestGetGames_FailedFetchContributesNothing(t *testing.T) {
	steam := &fakeFetcher{err: errors.New("steam down")}
	epic := &fakeFetcher{games: map[string][]catalog.Game{
		"e-1": {{ID: "epic_fn", Name: "Fortnite"}},
	}}
	registry := catalog.NewRegistry()
	registry.Register(idp.ProviderSteam, steam)
	registry.Register(idp.ProviderEpic, epic)

	accounts := []ledger.LinkedAccount{
		{Provider: idp.ProviderSteam, ProviderID: "7656", Name: "gordon"},
		{Provider: idp.ProviderEpic, ProviderID: "e-1", Name: "gordon", AccessToken: "tok"},
		{Provider: idp.ProviderGOG, ProviderID: "g-1", Name: "gordon", AccessToken: "tok"},
	}
	result, err := NewGateway(registry, 0).GetGames(context.Background(), steamSession(), accounts)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Game{{ID: "epic_fn", Name: "Fortnite"}}, result.Games)
	assert.Equal(t, 1, result.TotalCount)
}

func TestGetGames_AllFailuresYieldEmptyList(t *testing.T) {
	registry := catalog.NewRegistry()
	registry.Register(idp.ProviderSteam, &fakeFetcher{err: errors.New("boom")})

	result, err := NewGateway(registry, 0).GetGames(context.Background(), steamSession(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result.Games)
	assert.Empty(t, result.Games)
	assert.Zero(t, result.TotalCount)
}
