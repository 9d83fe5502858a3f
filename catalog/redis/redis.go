// Package redis provides a Redis-backed catalog.Store.
//
// Layout under the key prefix:
//
//	next_id        INCR counter for drink ids
//	drink:<id>     JSON-encoded drink
//	ids            sorted set of ids (score = id) for ordered listing
//	titles         hash of title -> id enforcing unique titles
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/drinks-catalog-go/catalog"
)

const maxTxRetries = 8

// Config contains configuration options for the Redis store.
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "catalog:"
	KeyPrefix string
}

// Store implements catalog.Store on Redis.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

var _ catalog.Store = (*Store)(nil)

// New creates a Redis-backed store. It does not ping the server.
func New(config Config) (*Store, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "catalog:"
	}
	return &Store{client: config.Client, keyPrefix: config.KeyPrefix}, nil
}

func (s *Store) nextIDKey() string        { return s.keyPrefix + "next_id" }
func (s *Store) idsKey() string           { return s.keyPrefix + "ids" }
func (s *Store) titlesKey() string        { return s.keyPrefix + "titles" }
func (s *Store) drinkKey(id int64) string { return s.keyPrefix + "drink:" + strconv.FormatInt(id, 10) }

func (s *Store) List(ctx context.Context) ([]catalog.Drink, error) {
	ids, err := s.client.ZRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list drink ids: %w", err)
	}
	out := make([]catalog.Drink, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyPrefix + "drink:" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load drinks: %w", err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		var d catalog.Drink
		if err := json.Unmarshal([]byte(str), &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (catalog.Drink, error) {
	return s.get(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) get(ctx context.Context, c getter, id int64) (catalog.Drink, error) {
	raw, err := c.Get(ctx, s.drinkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return catalog.Drink{}, catalog.ErrNotFound
		}
		return catalog.Drink{}, fmt.Errorf("failed to get drink %d: %w", id, err)
	}
	var d catalog.Drink
	if err := json.Unmarshal(raw, &d); err != nil {
		return catalog.Drink{}, fmt.Errorf("failed to unmarshal drink %d: %w", id, err)
	}
	return d, nil
}

func (s *Store) Create(ctx context.Context, d catalog.Drink) (catalog.Drink, error) {
	if err := d.Validate(); err != nil {
		return catalog.Drink{}, err
	}
	id, err := s.client.Incr(ctx, s.nextIDKey()).Result()
	if err != nil {
		return catalog.Drink{}, fmt.Errorf("failed to allocate drink id: %w", err)
	}
	d = d.Long()
	d.ID = id

	claimed, err := s.client.HSetNX(ctx, s.titlesKey(), d.Title, id).Result()
	if err != nil {
		return catalog.Drink{}, fmt.Errorf("failed to reserve title: %w", err)
	}
	if !claimed {
		return catalog.Drink{}, catalog.ErrConflict
	}

	data, err := json.Marshal(d)
	if err != nil {
		return catalog.Drink{}, fmt.Errorf("failed to marshal drink: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.drinkKey(id), data, 0)
		p.ZAdd(ctx, s.idsKey(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		s.client.HDel(context.WithoutCancel(ctx), s.titlesKey(), d.Title)
		return catalog.Drink{}, fmt.Errorf("failed to store drink: %w", err)
	}
	return d, nil
}

func (s *Store) Update(ctx context.Context, id int64, u catalog.Update) (catalog.Drink, error) {
	var out catalog.Drink
	txf := func(tx *redis.Tx) error {
		cur, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := u.Apply(cur)
		if err != nil {
			return err
		}
		if next.Title != cur.Title {
			owner, err := tx.HGet(ctx, s.titlesKey(), next.Title).Result()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return fmt.Errorf("failed to check title: %w", err)
			case owner != strconv.FormatInt(id, 10):
				return catalog.ErrConflict
			}
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal drink: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, s.drinkKey(id), data, 0)
			if next.Title != cur.Title {
				p.HDel(ctx, s.titlesKey(), cur.Title)
				p.HSet(ctx, s.titlesKey(), next.Title, id)
			}
			return nil
		})
		out = next
		return err
	}
	if err := s.watch(ctx, txf, s.drinkKey(id), s.titlesKey()); err != nil {
		return catalog.Drink{}, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		cur, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, s.drinkKey(id))
			p.ZRem(ctx, s.idsKey(), strconv.FormatInt(id, 10))
			p.HDel(ctx, s.titlesKey(), cur.Title)
			return nil
		})
		return err
	}, s.drinkKey(id), s.titlesKey())
}

// watch runs fn under WATCH on keys, retrying when a concurrent writer
// invalidates the transaction.
func (s *Store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction retries exhausted")
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
