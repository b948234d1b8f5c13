package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a room's questions from the durable store.
type QuestionLoader interface {
	ListQuestions(ctx context.Context, roomID string) ([]domain.Question, error)
}

// QuestionCache caches room questions in Redis and falls back to a loader on
// cache miss. Each question is stored as JSON under its order number:
//
//	HSET quiz:room:{roomID}:questions {orderNumber} {question json}
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, roomID string) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx, roomID); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(roomID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.cached(ctx, roomID); ok {
			return qs, nil
		}

		qs, err := c.loader.ListQuestions(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if len(qs) == 0 {
			return qs, nil
		}

		key := questionsKey(roomID)
		pipe := c.client.Pipeline()
		for _, q := range qs {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, key, strconv.Itoa(q.OrderNumber), raw)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// best-effort: the loader result is authoritative either way
		_, _ = pipe.Exec(ctx)

		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached questions for roomID.
func (c *QuestionCache) Invalidate(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, questionsKey(roomID)).Err()
}

func (c *QuestionCache) cached(ctx context.Context, roomID string) ([]domain.Question, bool) {
	fields, err := c.client.HGetAll(ctx, questionsKey(roomID)).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}
	qs := make([]domain.Question, 0, len(fields))
	for _, raw := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, false
		}
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].OrderNumber < qs[j].OrderNumber })
	return qs, true
}

func questionsKey(roomID string) string {
	return "quiz:room:" + roomID + ":questions"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
