package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/gamefront/internal/cookie"
	"github.com/dgellow/gamefront/internal/crypto"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/log"
)

// CookieBackend keeps the whole ledger in the encrypted linked-accounts cookie.
type CookieBackend struct {
	encryptor crypto.Encryptor
	ttl       time.Duration
}

// NewCookieBackend creates a cookie backend
func NewCookieBackend(encryptor crypto.Encryptor, ttl time.Duration) *CookieBackend {
	return &CookieBackend{encryptor: encryptor, ttl: ttl}
}

// Open implements Backend
func (b *CookieBackend) Open(w http.ResponseWriter, r *http.Request) Store {
	return &cookieStore{backend: b, w: w, r: r}
}

// cookieStore remembers what it wrote so later reads in the same request see it
type cookieStore struct {
	backend  *CookieBackend
	w        http.ResponseWriter
	r        *http.Request
	loaded   bool
	accounts []LinkedAccount
}

func (s *cookieStore) load() []LinkedAccount {
	if s.loaded {
		return s.accounts
	}
	s.loaded = true
	s.accounts = []LinkedAccount{}

	sealed, err := cookie.Get(s.r, cookie.LinkedAccounts)
	if err != nil || sealed == "" {
		return s.accounts
	}

	plain, err := s.backend.encryptor.Decrypt(sealed)
	if err != nil {
		log.LogWarnWithFields("ledger", "Ignoring unreadable linked-accounts cookie", map[string]any{
			"error": err.Error(),
		})
		return s.accounts
	}

	s.accounts = Decode([]byte(plain))
	return s.accounts
}

func (s *cookieStore) save(accounts []LinkedAccount) error {
	s.accounts = accounts
	s.loaded = true

	if len(accounts) == 0 {
		cookie.Clear(s.w, cookie.LinkedAccounts)
		return nil
	}

	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("marshaling linked accounts: %w", err)
	}
	sealed, err := s.backend.encryptor.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("encrypting linked accounts: %w", err)
	}
	if !cookie.Fits(cookie.LinkedAccounts, sealed) {
		log.LogWarnWithFields("ledger", "Linked-accounts cookie exceeds browser size limit", map[string]any{
			"bytes":    len(sealed),
			"accounts": len(accounts),
		})
	}

	cookie.Set(s.w, cookie.LinkedAccounts, sealed, s.backend.ttl)
	return nil
}

func (s *cookieStore) List(context.Context) ([]LinkedAccount, error) {
	accounts := s.load()
	out := make([]LinkedAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}

func (s *cookieStore) Upsert(_ context.Context, account LinkedAccount) error {
	return s.save(Upsert(s.load(), account))
}

func (s *cookieStore) Remove(_ context.Context, provider idp.ProviderType, providerID string) error {
	remaining, found := Remove(s.load(), provider, providerID)
	if !found {
		return nil
	}
	return s.save(remaining)
}
