package memory

import (
	"context"

	"exit-readiness-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// StaticQuizLoader serves quizzes from an immutable in-memory map. It satisfies
// both QuizLoader and app.QuizRepository.
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	copied := make(map[string]domain.Quiz, len(quizzes))
	for id, quiz := range quizzes {
		copied[id] = quiz
	}
	return &StaticQuizLoader{quizzes: copied}
}

// NewBuiltinQuizLoader serves only the built-in exit readiness scorecard.
func NewBuiltinQuizLoader() *StaticQuizLoader {
	return NewStaticQuizLoader(map[string]domain.Quiz{ExitReadinessQuizID: ExitReadinessQuiz()})
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

func (l *StaticQuizLoader) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return l.LoadQuiz(ctx, quizID)
}

// LoaderRepository adapts any QuizLoader into a repository without caching.
type LoaderRepository struct {
	loader QuizLoader
}

func NewLoaderRepository(loader QuizLoader) *LoaderRepository {
	return &LoaderRepository{loader: loader}
}

func (r *LoaderRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return r.loader.LoadQuiz(ctx, quizID)
}
