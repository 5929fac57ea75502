package ledger

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryRepository keeps ledgers in process memory. Entries expire after ttl
// and everything is lost on restart.
type MemoryRepository struct {
	entries *cache.Cache
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an in-memory repository
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	return &MemoryRepository{
		entries: cache.New(ttl, 10*time.Minute),
	}
}

func (m *MemoryRepository) Load(_ context.Context, owner string) ([]LinkedAccount, error) {
	v, ok := m.entries.Get(owner)
	if !ok {
		return []LinkedAccount{}, nil
	}
	stored := v.([]LinkedAccount)
	out := make([]LinkedAccount, len(stored))
	copy(out, stored)
	return out, nil
}

func (m *MemoryRepository) Save(_ context.Context, owner string, accounts []LinkedAccount) error {
	stored := make([]LinkedAccount, len(accounts))
	copy(stored, accounts)
	m.entries.SetDefault(owner, stored)
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, owner string) error {
	m.entries.Delete(owner)
	return nil
}
