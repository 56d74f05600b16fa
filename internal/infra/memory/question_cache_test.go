package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenplay-service/internal/domain"
)

func TestQuestionCacheLoadsOnce(t *testing.T) {
	loader := &countingLoader{StaticQuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	cache := NewQuestionCache(loader, time.Minute)

	q, err := cache.GetQuestion(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Which bin takes glass bottles?", q.Text)

	_, err = cache.RandomQuestions(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load(), "second call should hit the cache")
}

func TestQuestionCacheExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	loader := &countingLoader{StaticQuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	cache := NewQuestionCache(loader, time.Minute)
	cache.clock = func() time.Time { return now }

	_, err := cache.GetQuestion(context.Background(), 1)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = cache.GetQuestion(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestQuestionCacheCollapsesConcurrentMisses(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{StaticQuestionLoader: NewStaticQuestionLoader(sampleQuestions()), gate: release}
	cache := NewQuestionCache(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.RandomQuestions(context.Background(), 1)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestQuestionCacheUnknownID(t *testing.T) {
	cache := NewQuestionCache(NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	_, err := cache.GetQuestion(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRandomQuestionsAreDistinctAndCapped(t *testing.T) {
	cache := NewQuestionCache(NewStaticQuestionLoader(sampleQuestions()), time.Minute)

	got, err := cache.RandomQuestions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	seen := map[int64]bool{}
	for _, q := range got {
		assert.False(t, seen[q.ID], "duplicate question %d", q.ID)
		seen[q.ID] = true
	}
}

type countingLoader struct {
	*StaticQuestionLoader
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.StaticQuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What does the first R stand for?", Options: [4]string{"Reduce", "Reuse", "Recycle", "Repair"}, CorrectOption: 1, Fact: "Reducing comes first."},
		{ID: 2, Text: "Which bin takes glass bottles?", Options: [4]string{"Blue", "Brown", "Orange", "Green"}, CorrectOption: 2, Fact: "Brown bins collect glass."},
		{ID: 3, Text: "Which is renewable?", Options: [4]string{"Coal", "Gas", "Solar", "Oil"}, CorrectOption: 3, Fact: "Solar is renewable."},
	}
}
