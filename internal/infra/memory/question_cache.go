package memory

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"greenplay-service/internal/app"
	"greenplay-service/internal/domain"
)

const catalogKey = "catalog"

// QuestionCache keeps the question catalog in process with a TTL to avoid
// repeated loader hits.
type QuestionCache struct {
	loader app.QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	byID      map[int64]domain.Question
	all       []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader app.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
	}
}

// GetQuestion returns one question by id.
func (c *QuestionCache) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	if err := c.ensure(ctx); err != nil {
		return domain.Question{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.byID[id]
	if !ok {
		return domain.Question{}, domain.NotFound("question")
	}
	return q, nil
}

// RandomQuestions returns up to n distinct questions.
func (c *QuestionCache) RandomQuestions(ctx context.Context, n int) ([]domain.Question, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.SampleQuestions(c.all, n), nil
}

// Invalidate drops the cached catalog.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *QuestionCache) fresh(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID != nil && c.expiresAt.After(now)
}

func (c *QuestionCache) ensure(ctx context.Context) error {
	if c.fresh(c.clock()) {
		return nil
	}

	_, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		now := c.clock()
		// another caller may have refilled the cache while we waited
		if c.fresh(now) {
			return nil, nil
		}

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		byID := make(map[int64]domain.Question, len(questions))
		for _, q := range questions {
			byID[q.ID] = q
		}
		c.mu.Lock()
		c.byID = byID
		c.all = questions
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

// StaticQuestionLoader serves a fixed catalog (seed data, tests, demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}
