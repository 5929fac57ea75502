package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/gamefront/internal/crypto"
	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each ledger as one encrypted JSON value with a TTL
type RedisRepository struct {
	client    *redis.Client
	encryptor crypto.Encryptor
	prefix    string
	ttl       time.Duration
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository creates a Redis-backed repository
func NewRedisRepository(client *redis.Client, encryptor crypto.Encryptor, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client:    client,
		encryptor: encryptor,
		prefix:    "gamefront:ledger:",
		ttl:       ttl,
	}
}

func (r *RedisRepository) key(owner string) string {
	return r.prefix + owner
}

func (r *RedisRepository) Load(ctx context.Context, owner string) ([]LinkedAccount, error) {
	val, err := r.client.Get(ctx, r.key(owner)).Result()
	if errors.Is(err, redis.Nil) {
		return []LinkedAccount{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: redis get: %w", err)
	}

	plain, err := r.encryptor.Decrypt(val)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to decrypt: %w", err)
	}
	return Decode([]byte(plain)), nil
}

func (r *RedisRepository) Save(ctx context.Context, owner string, accounts []LinkedAccount) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("ledger: failed to marshal: %w", err)
	}
	sealed, err := r.encryptor.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("ledger: failed to encrypt: %w", err)
	}
	return r.client.Set(ctx, r.key(owner), sealed, r.ttl).Err()
}

func (r *RedisRepository) Delete(ctx context.Context, owner string) error {
	return r.client.Del(ctx, r.key(owner)).Err()
}

// Close closes the Redis client
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
