package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
)

// QuestionsKey holds the catalog as HSET quiz:questions {questionID} {json}.
const QuestionsKey = "quiz:questions"

// QuestionCache caches the question catalog in a Redis hash and falls back
// to a loader when the hash is missing.
type QuestionCache struct {
	client *redis.Client
	loader app.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionCache(client *redis.Client, loader app.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{client: client, loader: loader, ttl: ttl}
}

// GetQuestion returns one question by id.
func (c *QuestionCache) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	raw, err := c.client.HGet(ctx, QuestionsKey, strconv.FormatInt(id, 10)).Result()
	if err == nil {
		return decodeQuestion(raw)
	}
	if !errors.Is(err, redis.Nil) {
		return domain.Question{}, domain.Persistence("read question cache", err)
	}

	// a missing field only means "unknown" once the hash is populated
	n, err := c.client.Exists(ctx, QuestionsKey).Result()
	if err != nil {
		return domain.Question{}, domain.Persistence("read question cache", err)
	}
	if n > 0 {
		return domain.Question{}, domain.NotFound("question")
	}

	all, err := c.fill(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	for _, q := range all {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.Question{}, domain.NotFound("question")
}

// RandomQuestions returns up to n distinct questions.
func (c *QuestionCache) RandomQuestions(ctx context.Context, n int) ([]domain.Question, error) {
	values, err := c.client.HVals(ctx, QuestionsKey).Result()
	if err != nil {
		return nil, domain.Persistence("read question cache", err)
	}
	if len(values) == 0 {
		all, err := c.fill(ctx)
		if err != nil {
			return nil, err
		}
		return domain.SampleQuestions(all, n), nil
	}

	if n > len(values) {
		n = len(values)
	}
	out := make([]domain.Question, 0, n)
	for _, i := range rand.Perm(len(values))[:n] {
		q, err := decodeQuestion(values[i])
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Invalidate removes the cached catalog.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, QuestionsKey).Err()
}

func (c *QuestionCache) fill(ctx context.Context) ([]domain.Question, error) {
	result, err, _ := c.sf.Do(QuestionsKey, func() (interface{}, error) {
		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return questions, nil
		}

		fields := make(map[string]interface{}, len(questions))
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			fields[strconv.FormatInt(q.ID, 10)] = raw
		}
		pipe := c.client.TxPipeline()
		pipe.Del(ctx, QuestionsKey)
		pipe.HSet(ctx, QuestionsKey, fields)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, QuestionsKey, ttl)
		}
		// best effort: a failed write only costs another load
		_, _ = pipe.Exec(ctx)
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

func decodeQuestion(raw string) (domain.Question, error) {
	var q domain.Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return domain.Question{}, domain.Persistence("decode cached question", err)
	}
	return q, nil
}
