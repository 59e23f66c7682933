package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Guyuepp/go-comment-engine/domain"
)

// KeyGenerationPrefix prefixes the generation counter of every list key
const KeyGenerationPrefix = "gen:"

type commentCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.CommentCache = (*commentCache)(nil)

// cachedList is the stored value, tagged with the generation it was loaded at
type cachedList struct {
	Gen  int64               `json:"gen"`
	Rows []domain.CommentRow `json:"rows"`
}

func NewCommentCache(client *redis.Client, ttl time.Duration) *commentCache {
	return &commentCache{
		client: client,
		ttl:    ttl,
	}
}

func genKey(key string) string {
	return KeyGenerationPrefix + key
}

func (c *commentCache) GetList(ctx context.Context, key string) ([]domain.CommentRow, error) {
	vals, err := c.client.MGet(ctx, key, genKey(key)).Result()
	if err != nil {
		return nil, err
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, domain.ErrCacheMiss
	}

	var entry cachedList
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, err
	}
	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, err
	}
	if entry.Gen != gen {
		return nil, domain.ErrCacheMiss
	}
	return entry.Rows, nil
}

func (c *commentCache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *commentCache) SetList(ctx context.Context, key string, gen int64, rows []domain.CommentRow) error {
	data, err := json.Marshal(cachedList{Gen: gen, Rows: rows})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *commentCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, key := range keys {
		pipe.Incr(ctx, genKey(key))
	}
	pipe.Del(ctx, keys...)
	_, err := pipe.Exec(ctx)
	return err
}

// parseGeneration reads an MGET slot, a missing counter is generation 0
func parseGeneration(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
