// Package handoff carries a freshly verified identity from a provider callback
// to the sign-in completion request that follows it.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/gamefront/internal/cookie"
	"github.com/dgellow/gamefront/internal/crypto"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/log"
)

// TTL bounds how long an identity waits in the mailbox
const TTL = 60 * time.Second

// ErrTooLarge is returned by Put when the sealed identity would not fit in a cookie.
var ErrTooLarge = errors.New("handoff payload exceeds cookie size limit")

// Mailbox is a one-shot slot per provider. Take empties the slot whether or
// not its content is usable.
type Mailbox interface {
	Put(w http.ResponseWriter, identity *idp.Identity) error
	Take(w http.ResponseWriter, r *http.Request, provider idp.ProviderType) (*idp.Identity, bool)
}

// CookieMailbox keeps the identity in a short-lived "<provider>-user" cookie.
// The payload is sealed with an AEAD since it may hold provider tokens, and
// carries its own expiry so a replayed cookie is refused after TTL.
type CookieMailbox struct {
	encryptor crypto.Encryptor
	now       func() time.Time
}

// NewCookieMailbox creates a cookie mailbox
func NewCookieMailbox(encryptor crypto.Encryptor) *CookieMailbox {
	return &CookieMailbox{
		encryptor: encryptor,
		now:       time.Now,
	}
}

type payload struct {
	Identity  idp.Identity `json:"identity"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Put stores identity for its provider
func (m *CookieMailbox) Put(w http.ResponseWriter, identity *idp.Identity) error {
	plain, err := json.Marshal(payload{Identity: *identity, ExpiresAt: m.now().Add(TTL)})
	if err != nil {
		return fmt.Errorf("marshaling handoff payload: %w", err)
	}
	sealed, err := m.encryptor.Encrypt(string(plain))
	if err != nil {
		return fmt.Errorf("encrypting handoff payload: %w", err)
	}

	name := cookie.TransientUser(string(identity.Provider))
	if !cookie.Fits(name, sealed) {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(name)+len(sealed))
	}

	cookie.Set(w, name, sealed, TTL)
	return nil
}

// Take returns the identity waiting for provider and clears the slot
func (m *CookieMailbox) Take(w http.ResponseWriter, r *http.Request, provider idp.ProviderType) (*idp.Identity, bool) {
	name := cookie.TransientUser(string(provider))
	sealed, err := cookie.Get(r, name)
	if err != nil {
		return nil, false
	}
	cookie.Clear(w, name)

	plain, err := m.encryptor.Decrypt(sealed)
	if err != nil {
		log.LogWarnWithFields("handoff", "Discarding undecryptable handoff cookie", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, false
	}

	var p payload
	if err := json.Unmarshal([]byte(plain), &p); err != nil {
		log.LogWarnWithFields("handoff", "Discarding invalid handoff payload", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
		return nil, false
	}

	if !m.now().Before(p.ExpiresAt) {
		log.LogDebugWithFields("handoff", "Discarding expired handoff payload", map[string]any{
			"provider":  provider,
			"expiresAt": p.ExpiresAt,
		})
		return nil, false
	}

	if p.Identity.Provider != provider || p.Identity.ProviderID == "" {
		log.LogWarnWithFields("handoff", "Handoff payload does not match provider", map[string]any{
			"provider": provider,
			"payload":  p.Identity.Provider,
		})
		return nil, false
	}

	return &p.Identity, true
}
