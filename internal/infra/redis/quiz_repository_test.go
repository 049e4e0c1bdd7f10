package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exit-readiness-service/internal/domain"
	"exit-readiness-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{QuizLoader: memory.NewBuiltinQuizLoader()}
	repo := NewQuizRepository(client, loader, time.Minute, nil)

	quiz, err := repo.GetQuiz(context.Background(), memory.ExitReadinessQuizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.count())
	}
	if !mr.Exists("quiz:" + memory.ExitReadinessQuizID) {
		t.Fatalf("expected quiz cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetQuiz(context.Background(), memory.ExitReadinessQuizID)
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.count())
	}
	if len(cached.Questions) != len(quiz.Questions) || cached.Domains[4].RiskIfWeak != quiz.Domains[4].RiskIfWeak {
		t.Fatalf("cached quiz differs from loaded quiz")
	}
}

func TestQuizRepositoryExpiresAndInvalidates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuizLoader: memory.NewBuiltinQuizLoader()}
	repo := NewQuizRepository(newClient(mr), loader, time.Minute, nil)
	ctx := context.Background()

	_, _ = repo.GetQuiz(ctx, memory.ExitReadinessQuizID)
	mr.FastForward(2 * time.Minute)
	_, _ = repo.GetQuiz(ctx, memory.ExitReadinessQuizID)
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.count())
	}

	if err := repo.Invalidate(ctx, memory.ExitReadinessQuizID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.GetQuiz(ctx, memory.ExitReadinessQuizID)
	if loader.count() != 3 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.count())
	}
}

func TestQuizRepositoryPropagatesNotFound(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewQuizRepository(newClient(mr), memory.NewBuiltinQuizLoader(), time.Minute, nil)
	if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

type countingLoader struct {
	memory.QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
