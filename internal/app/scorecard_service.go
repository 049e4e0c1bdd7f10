package app

import (
	"context"
	"fmt"

	"exit-readiness-service/internal/domain"
)

// ScorecardService serves quiz content and scores answer sets without delivering anything.
type ScorecardService struct {
	quizzes       QuizRepository
	defaultQuizID string
}

func NewScorecardService(quizzes QuizRepository, defaultQuizID string) *ScorecardService {
	return &ScorecardService{quizzes: quizzes, defaultQuizID: defaultQuizID}
}

// Quiz returns the quiz definition; an empty id selects the default quiz.
func (s *ScorecardService) Quiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quizID == "" {
		quizID = s.defaultQuizID
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz %q: %w", quizID, err)
	}
	return quiz, nil
}

// Score computes the summary for a complete answer set.
func (s *ScorecardService) Score(ctx context.Context, quizID string, answers domain.AnswerSet) (domain.ScoreSummary, error) {
	quiz, err := s.Quiz(ctx, quizID)
	if err != nil {
		return domain.ScoreSummary{}, err
	}
	return ComputeScores(quiz, answers)
}
