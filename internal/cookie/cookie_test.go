package cookie

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	t.Setenv("GAMEFRONT_ENV", "")
	rec := httptest.NewRecorder()
	Set(rec, OAuthState("epic"), "abc", 10*time.Minute)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "epic-oauth-state", c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, 600, c.MaxAge)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestSet_DevDisablesSecure(t *testing.T) {
	t.Setenv("GAMEFRONT_ENV", "development")
	rec := httptest.NewRecorder()
	Set(rec, TransientUser("steam"), "v", time.Minute)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.False(t, cookies[0].Secure)
}

func TestClear(t *testing.T) {
	rec := httptest.NewRecorder()
	Clear(rec, LinkedAccounts)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "linked-accounts", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "token"})

	v, err := GetSession(req)
	require.NoError(t, err)
	assert.Equal(t, "token", v)

	_, err = Get(req, TransientUser("epic"))
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "steam-user", TransientUser("steam"))
	assert.Equal(t, "epic-user", TransientUser("epic"))
	assert.Equal(t, "epic-oauth-state", OAuthState("epic"))
}

func TestFits(t *testing.T) {
	assert.True(t, Fits("a", strings.Repeat("v", MaxSize-1)))
	assert.False(t, Fits("ab", strings.Repeat("v", MaxSize-1)))
}
