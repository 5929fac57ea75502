package ledger

import (
	"context"
	"net/http"
	"time"

	"github.com/dgellow/gamefront/internal/cookie"
	"github.com/dgellow/gamefront/internal/idp"
	"github.com/dgellow/gamefront/internal/log"
	"github.com/google/uuid"
)

// Repository persists one ordered ledger per owner ID.
// A missing ledger loads as an empty list.
type Repository interface {
	Load(ctx context.Context, owner string) ([]LinkedAccount, error)
	Save(ctx context.Context, owner string, accounts []LinkedAccount) error
	Delete(ctx context.Context, owner string) error
}

// KeyedBackend stores ledgers in a Repository, keyed by the browser's
// ledger-owner cookie. The owner ID is only minted on the first write.
type KeyedBackend struct {
	repo Repository
	ttl  time.Duration
}

// NewKeyedBackend creates a backend over repo. ttl bounds the owner cookie.
func NewKeyedBackend(repo Repository, ttl time.Duration) *KeyedBackend {
	return &KeyedBackend{repo: repo, ttl: ttl}
}

// Open implements Backend
func (b *KeyedBackend) Open(w http.ResponseWriter, r *http.Request) Store {
	return &keyedStore{backend: b, w: w, owner: ownerFromRequest(r)}
}

func ownerFromRequest(r *http.Request) string {
	value, err := cookie.Get(r, cookie.LedgerOwner)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(value)
	if err != nil {
		log.LogDebugWithFields("ledger", "Ignoring malformed ledger owner cookie", map[string]any{
			"error": err.Error(),
		})
		return ""
	}
	return id.String()
}

type keyedStore struct {
	backend *KeyedBackend
	w       http.ResponseWriter
	owner   string
}

// ensureOwner mints an owner ID and refreshes the cookie
func (s *keyedStore) ensureOwner() string {
	if s.owner == "" {
		s.owner = uuid.NewString()
	}
	cookie.Set(s.w, cookie.LedgerOwner, s.owner, s.backend.ttl)
	return s.owner
}

func (s *keyedStore) List(ctx context.Context) ([]LinkedAccount, error) {
	if s.owner == "" {
		return []LinkedAccount{}, nil
	}
	accounts, err := s.backend.repo.Load(ctx, s.owner)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []LinkedAccount{}
	}
	return accounts, nil
}

func (s *keyedStore) Upsert(ctx context.Context, account LinkedAccount) error {
	accounts, err := s.List(ctx)
	if err != nil {
		return err
	}
	return s.backend.repo.Save(ctx, s.ensureOwner(), Upsert(accounts, account))
}

func (s *keyedStore) Remove(ctx context.Context, provider idp.ProviderType, providerID string) error {
	accounts, err := s.List(ctx)
	if err != nil {
		return err
	}
	remaining, found := Remove(accounts, provider, providerID)
	if !found {
		return nil
	}
	if len(remaining) == 0 {
		return s.backend.repo.Delete(ctx, s.owner)
	}
	return s.backend.repo.Save(ctx, s.ensureOwner(), remaining)
}
