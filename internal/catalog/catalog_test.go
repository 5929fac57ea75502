package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgellow/gamefront/internal/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSteamFetcher(t *testing.T) {
	var detailCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /IPlayerService/GetOwnedGames/v1/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "7656", q.Get("steamid"))
		assert.Equal(t, "true", q.Get("include_appinfo"))
		assert.Equal(t, "true", q.Get("include_played_free_games"))
		_, _ = w.Write([]byte(`{"response":{"game_count":3,"games":[
			{"appid":400,"name":"Portal","playtime_forever":120},
			{"appid":70,"name":"Half-Life","playtime_forever":0},
			{"appid":620,"name":"Portal 2","playtime_forever":30}
		]}}`))
	})
	mux.HandleFunc("GET /api/appdetails", func(w http.ResponseWriter, r *http.Request) {
		detailCalls.Add(1)
		switch r.URL.Query().Get("appids") {
		case "400":
			_, _ = w.Write([]byte(`{"400":{"success":true,"data":{
				"categories":[{"id":2,"description":"Single-player"}],
				"genres":[{"id":"1","description":"Action"},{"id":"25","description":"Adventure"}]}}}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := NewSteamFetcher("test-key", 2, time.Millisecond)
	f.apiBaseURL = server.URL
	f.storeBaseURL = server.URL

	games, err := f.Fetch(context.Background(), Credential{Provider: idp.ProviderSteam, ProviderID: "7656"})
	require.NoError(t, err)
	require.Len(t, games, 3)

	portal := games[0]
	assert.Equal(t, "steam_400", portal.ID)
	assert.Equal(t, "Portal", portal.Name)
	assert.Equal(t, "Steam", portal.Platform)
	assert.Equal(t, "https://cdn.cloudflare.steamstatic.com/steam/apps/400/header.jpg", portal.Image)
	require.NotNil(t, portal.PlaytimeMinutes)
	assert.Equal(t, 120, *portal.PlaytimeMinutes)
	assert.Equal(t, []string{"Single-player"}, portal.Categories)
	assert.Equal(t, []string{"Action", "Adventure"}, portal.Tags)

	// store lookup failed: game kept without details
	assert.Equal(t, "Half-Life", games[1].Name)
	assert.Empty(t, games[1].Categories)

	// beyond the enrichment limit
	assert.Equal(t, "steam_620", games[2].ID)
	assert.Equal(t, int32(2), detailCalls.Load())
}

func TestSteamFetcher_MissingCredential(t *testing.T) {
	_, err := NewSteamFetcher("key", 50, 0).Fetch(context.Background(), Credential{Provider: idp.ProviderSteam})
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = NewSteamFetcher("", 50, 0).Fetch(context.Background(), Credential{Provider: idp.ProviderSteam, ProviderID: "1"})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func bearerServer(t *testing.T, path, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestEpicFetcher(t *testing.T) {
	server := bearerServer(t, "/library", `{"records":[
		{"catalogItemId":"fn","appName":"Fortnite","metadata":{"keyImages":[{"url":"https://cdn.example/fn.jpg"}],"categories":["games"],"genres":["Shooter"]}},
		{"catalogItemId":"rl","displayName":"Rocket League","metadata":{"categories":[{"path":"games/edition"}]}}
	]}`)
	f := NewEpicFetcher()
	f.libraryURL = server.URL + "/library"

	games, err := f.Fetch(context.Background(), Credential{Provider: idp.ProviderEpic, AccessToken: "good-token"})
	require.NoError(t, err)
	assert.Equal(t, []Game{
		{ID: "epic_fn", Name: "Fortnite", Platform: "Epic Games", Image: "https://cdn.example/fn.jpg", Categories: []string{"games"}, Tags: []string{"Shooter"}},
		{ID: "epic_rl", Name: "Rocket League", Platform: "Epic Games", Categories: []string{"games/edition"}},
	}, games)

	_, err = f.Fetch(context.Background(), Credential{Provider: idp.ProviderEpic, AccessToken: "expired"})
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), Credential{Provider: idp.ProviderEpic})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestGOGFetcher(t *testing.T) {
	server := bearerServer(t, "/users/me/games", `{"games":[{"id":1207658924,"title":"The Witcher","images":{"logo":"https://gog.example/w.png"}}]}`)
	f := NewGOGFetcher()
	f.gamesURL = server.URL + "/users/me/games"

	games, err := f.Fetch(context.Background(), Credential{Provider: idp.ProviderGOG, AccessToken: "good-token"})
	require.NoError(t, err)
	assert.Equal(t, []Game{{ID: "gog_1207658924", Name: "The Witcher", Platform: "GOG", Image: "https://gog.example/w.png"}}, games)
}

func TestXboxFetcher(t *testing.T) {
	server := bearerServer(t, "/users/me/library", `{"titles":[{"titleId":"1717113201","name":"Halo","displayImage":"https://xbox.example/h.png"}]}`)
	f := NewXboxFetcher()
	f.libraryURL = server.URL + "/users/me/library"

	games, err := f.Fetch(context.Background(), Credential{Provider: idp.ProviderXbox, AccessToken: "good-token"})
	require.NoError(t, err)
	assert.Equal(t, []Game{{ID: "xbox_1717113201", Name: "Halo", Platform: "Xbox", Image: "https://xbox.example/h.png"}}, games)
}

func TestPSNFetcher(t *testing.T) {
	server := bearerServer(t, "/profile2", `{"profile":{}}`)
	f := NewPSNFetcher()
	f.profileURL = server.URL + "/profile2"

	games, err := f.Fetch(context.Background(), Credential{Provider: idp.ProviderPSN, AccessToken: "good-token"})
	require.NoError(t, err)
	assert.NotNil(t, games)
	assert.Empty(t, games)

	_, err = f.Fetch(context.Background(), Credential{Provider: idp.ProviderPSN, AccessToken: "bad"})
	assert.Error(t, err)
}

func TestGameJSON(t *testing.T) {
	data, err := json.Marshal(Game{ID: "gog_1", Name: "X", Platform: "GOG"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"gog_1","name":"X","platform":"GOG"}`, string(data))

	zero := 0
	data, err = json.Marshal(Game{ID: "steam_1", Name: "Y", Platform: "Steam", PlaytimeMinutes: &zero})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"steam_1","name":"Y","platform":"Steam","playtimeMinutes":0}`, string(data))
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, cred Credential) ([]Game, error) {
	args := m.Called(ctx, cred)
	games, _ := args.Get(0).([]Game)
	return games, args.Error(1)
}

func TestCachedFetcher(t *testing.T) {
	cred := Credential{Provider: idp.ProviderSteam, ProviderID: "7656"}
	next := &mockFetcher{}
	next.On("Fetch", mock.Anything, cred).Return([]Game{{ID: "steam_400", Name: "Portal"}}, nil).Once()

	c := NewCachedFetcher(next, time.Minute, nil)

	first, err := c.Fetch(context.Background(), cred)
	require.NoError(t, err)
	second, err := c.Fetch(context.Background(), cred)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	next.AssertNumberOfCalls(t, "Fetch", 1)

	first[0].Name = "mutated"
	third, err := c.Fetch(context.Background(), cred)
	require.NoError(t, err)
	assert.Equal(t, "Portal", third[0].Name)
}

func TestCachedFetcher_ErrorsNotCached(t *testing.T) {
	cred := Credential{Provider: idp.ProviderEpic, ProviderID: "e-1", AccessToken: "t"}
	next := &mockFetcher{}
	next.On("Fetch", mock.Anything, cred).Return(nil, errors.New("upstream down")).Once()
	next.On("Fetch", mock.Anything, cred).Return([]Game{{ID: "epic_fn"}}, nil).Once()

	c := NewCachedFetcher(next, time.Minute, nil)

	_, err := c.Fetch(context.Background(), cred)
	assert.Error(t, err)

	games, err := c.Fetch(context.Background(), cred)
	require.NoError(t, err)
	assert.Len(t, games, 1)
	next.AssertExpectations(t)
}

type blockingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingFetcher) Fetch(context.Context, Credential) ([]Game, error) {
	b.calls.Add(1)
	<-b.release
	return []Game{{ID: "steam_1"}}, nil
}

func TestCachedFetcher_CollapsesConcurrentFetches(t *testing.T) {
	next := &blockingFetcher{release: make(chan struct{})}
	c := NewCachedFetcher(next, time.Minute, nil)
	cred := Credential{Provider: idp.ProviderSteam, ProviderID: "7656"}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			games, err := c.Fetch(context.Background(), cred)
			assert.NoError(t, err)
			assert.Len(t, games, 1)
		}()
	}

	// let the goroutines pile up on the in-flight call
	assert.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.LessOrEqual(t, next.calls.Load(), int32(5))
	assert.GreaterOrEqual(t, next.calls.Load(), int32(1))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	epic := NewEpicFetcher()
	r.Register(idp.ProviderEpic, epic)

	f, ok := r.Get(idp.ProviderEpic)
	require.True(t, ok)
	assert.Same(t, epic, f)

	_, ok = r.Get(idp.ProviderSteam)
	assert.False(t, ok)
}
