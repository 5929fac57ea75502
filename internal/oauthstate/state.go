// Package oauthstate issues and checks the anti-forgery state token that ties
// an OAuth2 callback to the browser that started the flow.
package oauthstate

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/dgellow/gamefront/internal/cookie"
	"github.com/dgellow/gamefront/internal/crypto"
)

// TTL is how long a stored state token stays valid
const TTL = 10 * time.Minute

// Issue returns a fresh random state token
func Issue() (string, error) {
	return crypto.GenerateSecureToken()
}

// Verify reports whether received matches stored. Empty values never match.
func Verify(received, stored string) bool {
	if received == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(stored)) == 1
}

// Store saves token in the provider's state cookie
func Store(w http.ResponseWriter, provider, token string) {
	cookie.Set(w, cookie.OAuthState(provider), token, TTL)
}

// Consume returns the stored token for provider and clears the cookie.
// The cookie is cleared even when it was absent so a token is never reused.
func Consume(w http.ResponseWriter, r *http.Request, provider string) string {
	name := cookie.OAuthState(provider)
	value, _ := cookie.Get(r, name)
	cookie.Clear(w, name)
	return value
}
