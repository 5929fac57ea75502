package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/dgellow/gamefront/internal/handoff"
	"github.com/dgellow/gamefront/internal/idp"
	jsonwriter "github.com/dgellow/gamefront/internal/json"
	"github.com/dgellow/gamefront/internal/ledger"
	"github.com/dgellow/gamefront/internal/log"
	"github.com/dgellow/gamefront/internal/metrics"
	"github.com/dgellow/gamefront/internal/oauthstate"
	"github.com/dgellow/gamefront/internal/session"
)

const callbackTimeout = 30 * time.Second

// AuthHandlers serves the provider sign-in flows and the session endpoints
type AuthHandlers struct {
	providers *idp.Registry
	sessions  *session.Issuer
	mailbox   handoff.Mailbox
	ledger    ledger.Backend
	metrics   *metrics.Metrics
}

// SessionResponse is the public view of the signed-in identity
type SessionResponse struct {
	Provider   idp.ProviderType `json:"provider"`
	ProviderID string           `json:"providerId"`
	Name       string           `json:"name"`
	Image      string           `json:"image,omitempty"`
	Email      string           `json:"email,omitempty"`
	ExpiresAt  time.Time        `json:"expiresAt"`
}

// NewAuthHandlers creates new auth handlers with dependency injection
func NewAuthHandlers(
	providers *idp.Registry,
	sessions *session.Issuer,
	mailbox handoff.Mailbox,
	ledgerBackend ledger.Backend,
	m *metrics.Metrics,
) *AuthHandlers {
	return &AuthHandlers{
		providers: providers,
		sessions:  sessions,
		mailbox:   mailbox,
		ledger:    ledgerBackend,
		metrics:   m,
	}
}

func (h *AuthHandlers) provider(r *http.Request) (idp.Provider, bool) {
	t, ok := idp.ParseProviderType(r.PathValue("provider"))
	if !ok {
		return nil, false
	}
	return h.providers.Get(t)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(code), http.StatusFound)
}

// LoginHandler starts the sign-in flow of the {provider} in the path
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		jsonwriter.WriteNotFound(w, "Unknown provider")
		return
	}

	redirect, err := p.BeginLogin()
	if err != nil {
		var cbErr *idp.CallbackError
		if errors.As(err, &cbErr) && cbErr.Kind == idp.KindProtocol {
			redirectWithError(w, r, cbErr.Code)
			return
		}
		log.LogErrorWithFields("auth", "Failed to start sign-in", map[string]any{
			"provider": p.Type(),
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, idp.ErrorCode(err, "Failed to start sign-in"))
		return
	}

	if redirect.State != "" {
		oauthstate.Store(w, string(p.Type()), redirect.State)
	}
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// CallbackHandler finishes the provider flow: the identity is recorded in the
// ledger and left in the handoff mailbox for the sign-in page to pick up.
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(r)
	if !ok {
		jsonwriter.WriteNotFound(w, "Unknown provider")
		return
	}
	providerName := string(p.Type())

	var storedState string
	if p.UsesState() {
		storedState = oauthstate.Consume(w, r, providerName)
	}

	ctx, cancel := context.WithTimeout(r.Context(), callbackTimeout)
	defer cancel()

	identity, err := p.HandleCallback(ctx, r.URL.Query(), storedState)
	if err != nil {
		code := idp.ErrorCode(err, idp.CodeUnknown)
		outcome := "error"
		var cbErr *idp.CallbackError
		if errors.As(err, &cbErr) {
			outcome = string(cbErr.Kind)
		}
		h.metrics.ObserveCallback(providerName, outcome)
		log.LogWarnWithFields("auth", "Provider callback failed", map[string]any{
			"provider": providerName,
			"code":     code,
			"error":    err.Error(),
		})
		redirectWithError(w, r, code)
		return
	}

	store := h.ledger.Open(w, r)
	if err := store.Upsert(ctx, ledger.FromIdentity(*identity)); err != nil {
		// the sign-in still completes, the account just is not remembered
		log.LogErrorWithFields("auth", "Failed to record linked account", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
	}

	if err := h.mailbox.Put(w, identity); err != nil {
		h.metrics.ObserveCallback(providerName, "error")
		log.LogErrorWithFields("auth", "Failed to hand off identity", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		redirectWithError(w, r, idp.CodeUnknown)
		return
	}

	h.metrics.ObserveCallback(providerName, "ok")
	log.LogInfoWithFields("auth", "Provider sign-in verified", map[string]any{
		"provider":   providerName,
		"providerId": identity.ProviderID,
	})
	http.Redirect(w, r, "/"+providerName+"-signin", http.StatusFound)
}

// SignInHandler completes the session for provider from the handoff mailbox
func (h *AuthHandlers) SignInHandler(provider idp.ProviderType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, hadSession := h.sessions.Current(r)

		if _, ok := h.sessions.CompleteFromTransient(w, r, provider); !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		if hadSession {
			http.Redirect(w, r, "/auth/signin?linking=true", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	}
}

// SessionHandler returns the signed-in identity without its tokens
func (h *AuthHandlers) SessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Current(r)
	if !ok {
		jsonwriter.WriteUnauthorized(w, "")
		return
	}

	_ = jsonwriter.Write(w, SessionResponse{
		Provider:   sess.Identity.Provider,
		ProviderID: sess.Identity.ProviderID,
		Name:       sess.Identity.DisplayName,
		Image:      sess.Identity.AvatarURL,
		Email:      sess.Identity.Email,
		ExpiresAt:  sess.ExpiresAt,
	})
}

// SignOutHandler clears the session cookie. Linked accounts are kept.
func (h *AuthHandlers) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	h.sessions.SignOut(w)
	w.WriteHeader(http.StatusNoContent)
}
