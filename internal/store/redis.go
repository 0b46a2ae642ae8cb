// Package store implements the link store: the durable short code -> link
// mapping that redirect resolution reads from. Each link is a JSON value
// keyed by its short code. The store is the single source of truth for
// resolution, so entries carry no TTL.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blatik/shortlink/internal/model"
)

// codeKeyPrefix namespaces short code keys in Redis
const codeKeyPrefix = "short:code:"

// LinkStore wraps the Redis client backing the point-lookup store
type LinkStore struct {
	client *redis.Client
}

// NewLinkStore creates a link store and verifies connectivity
func NewLinkStore(addr, password string, db, poolSize int) (*LinkStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &LinkStore{client: client}, nil
}

// GetLink retrieves a link by short code. Returns (nil, nil) when the code is
// unknown.
func (s *LinkStore) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	val, err := s.client.Get(ctx, codeKeyPrefix+shortCode).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link from store: %w", err)
	}

	var link model.Link
	if err := json.Unmarshal([]byte(val), &link); err != nil {
		return nil, fmt.Errorf("failed to decode stored link %q: %w", shortCode, err)
	}
	return &link, nil
}

// PutLinkIfAbsent writes the link under its short code only if the code is
// unclaimed. Returns false when another writer already holds the code; this
// conditional write is what makes concurrent claims on the same code safe.
func (s *LinkStore) PutLinkIfAbsent(ctx context.Context, link *model.Link) (bool, error) {
	data, err := json.Marshal(link)
	if err != nil {
		return false, fmt.Errorf("failed to encode link: %w", err)
	}

	created, err := s.client.SetNX(ctx, codeKeyPrefix+link.ShortCode, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to write link to store: %w", err)
	}
	return created, nil
}

// Exists reports whether a short code is already claimed
func (s *LinkStore) Exists(ctx context.Context, shortCode string) (bool, error) {
	n, err := s.client.Exists(ctx, codeKeyPrefix+shortCode).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check short code existence: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis connection
func (s *LinkStore) Close() error {
	return s.client.Close()
}
