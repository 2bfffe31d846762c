// Package docstore is the document attribute store adapter. It keeps each
// entity's descriptive fields as a JSON document in Redis, keyed by the same
// identity the graph store uses, and knows nothing about relationships.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/motorlot/motorlot/engine/domain"
)

const keyPrefix = "doc:"

// Options configures the Redis connection and the read cache.
type Options struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379").
	URL string

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// CacheSize is the number of documents held in the in-process read
	// cache. Zero disables the cache.
	CacheSize int

	// CacheTTL expires cached documents.
	CacheTTL time.Duration
}

// Store implements the document operations over go-redis.
type Store struct {
	client *redis.Client
	cache  *lru.LRU[string, domain.Attributes]
}

// New connects to Redis and verifies the connection with a ping.
func New(opts Options) (*Store, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect: %w: %w", domain.ErrStoreUnavailable, err)
	}

	s := &Store{client: client}
	if opts.CacheSize > 0 {
		s.cache = lru.NewLRU[string, domain.Attributes](opts.CacheSize, nil, opts.CacheTTL)
	}
	return s, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error { return s.client.Close() }

func docKey(kind domain.Kind, id domain.Identity) string {
	return keyPrefix + string(kind) + ":" + string(id)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("docstore %s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// Put stores the attribute document for an identity, creating or
// overwriting.
func (s *Store) Put(ctx context.Context, id domain.Identity, attrs domain.Attributes) error {
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("docstore put: encode: %w", err)
	}
	key := docKey(attrs.Kind(), id)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return unavailable("put", err)
	}
	if s.cache != nil {
		s.cache.Add(key, attrs)
	}
	return nil
}

// Get fetches the document for an identity. Absence is a normal outcome:
// ok is false and err is nil.
func (s *Store) Get(ctx context.Context, kind domain.Kind, id domain.Identity) (domain.Attributes, bool, error) {
	key := docKey(kind, id)
	if s.cache != nil {
		if attrs, ok := s.cache.Get(key); ok {
			return attrs, true, nil
		}
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}

	attrs, err := domain.DecodeAttributes(kind, data)
	if err != nil {
		return nil, false, fmt.Errorf("docstore get %s: %w", id, err)
	}
	if s.cache != nil {
		s.cache.Add(key, attrs)
	}
	return attrs, true, nil
}

// Replace overwrites an existing document. Returns false without error when
// no document matched the identity.
func (s *Store) Replace(ctx context.Context, id domain.Identity, attrs domain.Attributes) (bool, error) {
	data, err := json.Marshal(attrs)
	if err != nil {
		return false, fmt.Errorf("docstore replace: encode: %w", err)
	}
	key := docKey(attrs.Kind(), id)
	set, err := s.client.SetXX(ctx, key, data, 0).Result()
	if err != nil {
		return false, unavailable("replace", err)
	}
	if s.cache != nil {
		if set {
			s.cache.Add(key, attrs)
		} else {
			s.cache.Remove(key)
		}
	}
	return set, nil
}

// Delete removes the document for an identity. Returns false when nothing
// was stored under it.
func (s *Store) Delete(ctx context.Context, kind domain.Kind, id domain.Identity) (bool, error) {
	key := docKey(kind, id)
	if s.cache != nil {
		s.cache.Remove(key)
	}
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, unavailable("delete", err)
	}
	return n > 0, nil
}

// List returns the identities of every document of a kind, in store-native
// scan order.
func (s *Store) List(ctx context.Context, kind domain.Kind) ([]domain.Identity, error) {
	prefix := keyPrefix + string(kind) + ":"
	var ids []domain.Identity

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, domain.Identity(strings.TrimPrefix(iter.Val(), prefix)))
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return ids, nil
}

// DropAll removes every document. Reset tooling only.
func (s *Store) DropAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return unavailable("drop all", err)
		}
	}
	if err := iter.Err(); err != nil {
		return unavailable("drop all", err)
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	return nil
}
