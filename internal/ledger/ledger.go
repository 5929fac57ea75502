// Package ledger keeps the list of platform accounts a browser has linked.
package ledger

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dgellow/gamefront/internal/idp"
)

// LinkedAccount is one platform identity attached to the user.
// At most one record exists per (Provider, ProviderID).
type LinkedAccount struct {
	Provider    idp.ProviderType `json:"provider"`
	ProviderID  string           `json:"providerId"`
	Name        string           `json:"name"`
	Image       string           `json:"image,omitempty"`
	AccessToken string           `json:"accessToken,omitempty"`
}

// PublicAccount is a LinkedAccount without credentials, safe to return to the browser
type PublicAccount struct {
	Provider   idp.ProviderType `json:"provider"`
	ProviderID string           `json:"providerId"`
	Name       string           `json:"name"`
	Image      string           `json:"image,omitempty"`
}

// Public drops the access token
func (a LinkedAccount) Public() PublicAccount {
	return PublicAccount{
		Provider:   a.Provider,
		ProviderID: a.ProviderID,
		Name:       a.Name,
		Image:      a.Image,
	}
}

// FromIdentity builds the ledger record for a completed provider flow.
// An identity without a display name is recorded under its provider ID.
func FromIdentity(identity idp.Identity) LinkedAccount {
	name := identity.DisplayName
	if name == "" {
		name = identity.ProviderID
	}
	return LinkedAccount{
		Provider:    identity.Provider,
		ProviderID:  identity.ProviderID,
		Name:        name,
		Image:       identity.AvatarURL,
		AccessToken: identity.AccessToken,
	}
}

// complete reports whether a carries the fields every stored record needs
func (a LinkedAccount) complete() bool {
	return a.Provider != "" && a.ProviderID != "" && a.Name != ""
}

// Store is the ledger of one browser
type Store interface {
	List(ctx context.Context) ([]LinkedAccount, error)
	Upsert(ctx context.Context, account LinkedAccount) error
	Remove(ctx context.Context, provider idp.ProviderType, providerID string) error
}

// Backend binds a Store to the browser making a request
type Backend interface {
	Open(w http.ResponseWriter, r *http.Request) Store
}

// Upsert replaces the record with the same (provider, providerId) in place,
// or appends account when there is none.
func Upsert(accounts []LinkedAccount, account LinkedAccount) []LinkedAccount {
	out := make([]LinkedAccount, 0, len(accounts)+1)
	replaced := false
	for _, a := range accounts {
		if a.Provider == account.Provider && a.ProviderID == account.ProviderID {
			out = append(out, account)
			replaced = true
			continue
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, account)
	}
	return out
}

// Remove drops the record for (provider, providerID). The bool reports whether one was found.
func Remove(accounts []LinkedAccount, provider idp.ProviderType, providerID string) ([]LinkedAccount, bool) {
	out := make([]LinkedAccount, 0, len(accounts))
	found := false
	for _, a := range accounts {
		if a.Provider == provider && a.ProviderID == providerID {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}

// Decode parses a stored list. Anything that is not a JSON array yields an
// empty list, and individual records without string provider, providerId and
// name are dropped.
func Decode(data []byte) []LinkedAccount {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []LinkedAccount{}
	}

	accounts := make([]LinkedAccount, 0, len(raw))
	for _, item := range raw {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		provider, _ := fields["provider"].(string)
		providerID, _ := fields["providerId"].(string)
		name, _ := fields["name"].(string)

		account := LinkedAccount{
			Provider:   idp.ProviderType(provider),
			ProviderID: providerID,
			Name:       name,
		}
		if !account.complete() {
			continue
		}
		if image, ok := fields["image"].(string); ok {
			account.Image = image
		}
		if token, ok := fields["accessToken"].(string); ok {
			account.AccessToken = token
		}
		accounts = append(accounts, account)
	}
	return accounts
}
