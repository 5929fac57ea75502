package server

import (
	"errors"
	"net/http"

	"github.com/dgellow/gamefront/internal/idp"
	jsonwriter "github.com/dgellow/gamefront/internal/json"
	"github.com/dgellow/gamefront/internal/ledger"
	"github.com/dgellow/gamefront/internal/library"
	"github.com/dgellow/gamefront/internal/log"
	"github.com/dgellow/gamefront/internal/session"
)

// LibraryHandlers serves the merged game library and the linked-account list
type LibraryHandlers struct {
	sessions *session.Issuer
	ledger   ledger.Backend
	gateway  *library.Gateway
}

// LinkedAccountsResponse lists linked accounts without credentials
type LinkedAccountsResponse struct {
	Accounts []ledger.PublicAccount `json:"accounts"`
}

// NewLibraryHandlers creates new library handlers
func NewLibraryHandlers(sessions *session.Issuer, ledgerBackend ledger.Backend, gateway *library.Gateway) *LibraryHandlers {
	return &LibraryHandlers{
		sessions: sessions,
		ledger:   ledgerBackend,
		gateway:  gateway,
	}
}

// GamesHandler returns the deduplicated union of all linked catalogs
func (h *LibraryHandlers) GamesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Current(r)
	if !ok {
		jsonwriter.WriteUnauthorized(w, "")
		return
	}

	accounts, err := h.ledger.Open(w, r).List(r.Context())
	if err != nil {
		log.LogErrorWithFields("library", "Failed to read linked accounts", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to read linked accounts")
		return
	}

	result, err := h.gateway.GetGames(r.Context(), sess, accounts)
	if err != nil {
		if errors.Is(err, library.ErrUnauthorized) {
			jsonwriter.WriteUnauthorized(w, "")
			return
		}
		log.LogErrorWithFields("library", "Failed to assemble library", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to fetch games")
		return
	}

	_ = jsonwriter.Write(w, result)
}

// LinkedAccountsHandler lists the accounts linked in this browser
func (h *LibraryHandlers) LinkedAccountsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessions.Current(r); !ok {
		jsonwriter.WriteUnauthorized(w, "")
		return
	}

	accounts, err := h.ledger.Open(w, r).List(r.Context())
	if err != nil {
		log.LogErrorWithFields("library", "Failed to read linked accounts", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to read linked accounts")
		return
	}

	public := make([]ledger.PublicAccount, 0, len(accounts))
	for _, a := range accounts {
		public = append(public, a.Public())
	}
	_ = jsonwriter.Write(w, LinkedAccountsResponse{Accounts: public})
}

// UnlinkHandler removes one linked account. Removing an unknown account is not an error.
func (h *LibraryHandlers) UnlinkHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessions.Current(r); !ok {
		jsonwriter.WriteUnauthorized(w, "")
		return
	}

	provider, ok := idp.ParseProviderType(r.PathValue("provider"))
	if !ok {
		jsonwriter.WriteNotFound(w, "Unknown provider")
		return
	}
	providerID := r.PathValue("providerId")

	if err := h.ledger.Open(w, r).Remove(r.Context(), provider, providerID); err != nil {
		log.LogErrorWithFields("library", "Failed to unlink account", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to unlink account")
		return
	}

	log.LogInfoWithFields("library", "Account unlinked", map[string]any{
		"provider":   provider,
		"providerId": providerID,
	})
	w.WriteHeader(http.StatusNoContent)
}
