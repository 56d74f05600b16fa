package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenplay-service/internal/domain"
	"greenplay-service/internal/infra/memory"
)

func TestQuestionCacheFillsRedisOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	loader := &countingLoader{StaticQuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions())}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	q, err := cache.GetQuestion(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, q.CorrectOption)
	assert.Equal(t, 1, loader.calls)
	assert.True(t, mr.Exists(QuestionsKey))
	fields, err := mr.HKeys(QuestionsKey)
	require.NoError(t, err)
	assert.Len(t, fields, 2)
	assert.Greater(t, mr.TTL(QuestionsKey), time.Duration(0))

	round, err := cache.RandomQuestions(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, round, 2)
	assert.Equal(t, 1, loader.calls, "second call should hit redis")

	_, err = cache.GetQuestion(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, loader.calls, "unknown ids do not reload a populated catalog")
}

func TestQuestionCacheReloadsAfterExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	loader := &countingLoader{StaticQuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions())}
	cache := NewQuestionCache(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	_, err := cache.RandomQuestions(ctx, 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists(QuestionsKey))

	_, err = cache.GetQuestion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestQuestionCacheEmptyCatalog(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewQuestionCache(newClient(mr), memory.NewStaticQuestionLoader(nil), time.Minute)

	round, err := cache.RandomQuestions(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, round)

	_, err = cache.GetQuestion(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type countingLoader struct {
	*memory.StaticQuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.StaticQuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "Which R comes first?", Options: [4]string{"Reduce", "Reuse", "Recycle", "Repair"}, CorrectOption: 1, Fact: "Reducing avoids waste entirely."},
		{ID: 2, Text: "Which is renewable?", Options: [4]string{"Coal", "Gas", "Solar", "Oil"}, CorrectOption: 3, Fact: "Sunlight is replenished daily."},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
