// Package cache keeps recently computed answers in Redis so a repeated
// question skips the embedding and generation round trips. The cache is
// best-effort: a miss or a Redis failure just recomputes the answer.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

type AnswerCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redisv9.Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached payload for a question/k pair, and whether one
// was present.
func (c *AnswerCache) Get(ctx context.Context, question string, topK int) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.key(question, topK)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get answer failed: %w", err)
	}
	return raw, true, nil
}

func (c *AnswerCache) Set(ctx context.Context, question string, topK int, payload []byte) error {
	if err := c.client.Set(ctx, c.key(question, topK), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set answer failed: %w", err)
	}
	return nil
}

// Flush drops all cached answers. Called whenever the indexed corpus
// changes, since cached answers cite documents that may be gone.
func (c *AnswerCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "rag:answer:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete answer failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan answers failed: %w", err)
	}
	return nil
}

func (c *AnswerCache) key(question string, topK int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", topK, question)))
	return "rag:answer:" + hex.EncodeToString(sum[:])
}
