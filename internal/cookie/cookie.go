package cookie

import (
	"net/http"
	"time"

	"github.com/dgellow/gamefront/internal/envutil"
	"github.com/dgellow/gamefront/internal/log"
)

// Cookie names used by gamefront
const (
	SessionCookie       = "gamefront_session"
	LinkedAccounts      = "linked-accounts"
	LedgerOwner         = "ledger-owner"
	transientUserSuffix = "-user"
	stateSuffix         = "-oauth-state"
)

// MaxSize is the per-cookie limit browsers enforce on name plus value.
const MaxSize = 4096

// Fits reports whether a cookie with this name and value stays within MaxSize.
func Fits(name, value string) bool {
	return len(name)+len(value) <= MaxSize
}

// TransientUser returns the one-shot handoff cookie name for a provider ("steam-user").
func TransientUser(provider string) string {
	return provider + transientUserSuffix
}

// OAuthState returns the state cookie name for a provider ("epic-oauth-state").
func OAuthState(provider string) string {
	return provider + stateSuffix
}

// Set writes an httpOnly, SameSite=Lax cookie on path "/".
// Secure is on unless running in development.
func Set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	secure := !envutil.IsDev()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})

	if !Fits(name, value) {
		log.LogWarnWithFields("cookie", "Cookie exceeds browser size limit and will be dropped", map[string]any{
			"name": name,
			"size": len(name) + len(value),
		})
	}

	log.LogTraceWithFields("cookie", "Cookie set", map[string]any{
		"name":   name,
		"maxAge": maxAge.String(),
		"secure": secure,
		"size":   len(value),
	})
}

// SetSession sets the session cookie
func SetSession(w http.ResponseWriter, value string, maxAge time.Duration) {
	Set(w, SessionCookie, value, maxAge)
}

// Clear removes a cookie by setting MaxAge to -1
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// ClearSession removes the session cookie
func ClearSession(w http.ResponseWriter) {
	Clear(w, SessionCookie)
	log.LogTraceWithFields("cookie", "Session cookie cleared", nil)
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetSession retrieves the session cookie value
func GetSession(r *http.Request) (string, error) {
	return Get(r, SessionCookie)
}
