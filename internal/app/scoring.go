package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"exit-readiness-service/internal/domain"
)

// Score band thresholds on the 0-100 overall scale.
const (
	exitReadyThreshold  = 80
	solidBaseThreshold  = 60
	highOpportunityBand = 8
	midOpportunityBand  = 5
)

// ComputeScores derives domain scores, the overall score and the strongest/weakest
// analysis from a complete answer set. Unknown question ids, ratings outside
// [1,5] and unanswered questions are rejected rather than clamped.
func ComputeScores(quiz domain.Quiz, answers domain.AnswerSet) (domain.ScoreSummary, error) {
	if len(quiz.Domains) == 0 {
		return domain.ScoreSummary{}, fmt.Errorf("quiz %q has no domains", quiz.ID)
	}
	for id, rating := range answers {
		if _, ok := quiz.Question(id); !ok {
			return domain.ScoreSummary{}, &domain.ValidationError{Field: "answers", Reason: fmt.Sprintf("unknown question %q", id), Err: domain.ErrQuestionNotFound}
		}
		if rating != 0 && (rating < 1 || rating > domain.MaxRating) {
			return domain.ScoreSummary{}, &domain.ValidationError{Field: "answers", Reason: fmt.Sprintf("rating %d for %q is outside 1-%d", rating, id, domain.MaxRating)}
		}
	}
	if missing := answers.Unanswered(quiz); len(missing) > 0 {
		return domain.ScoreSummary{}, &domain.ValidationError{Field: "answers", Reason: "unanswered questions: " + strings.Join(missing, ", ")}
	}

	sums := make(map[string]int, len(quiz.Domains))
	counts := make(map[string]int, len(quiz.Domains))
	for _, q := range quiz.Questions {
		sums[q.DomainID] += answers[q.ID]
		counts[q.DomainID]++
	}

	averages := make(map[string]float64, len(quiz.Domains))
	for _, d := range quiz.Domains {
		if counts[d.ID] == 0 {
			return domain.ScoreSummary{}, fmt.Errorf("domain %q has no questions", d.ID)
		}
		averages[d.ID] = float64(sums[d.ID]) / float64(counts[d.ID])
	}
	return summarize(quiz, averages, OverallScore(averagesInOrder(quiz, averages))), nil
}

// SummaryFromAverages builds a summary from domain averages computed elsewhere
// (typically by the browser). Every quiz domain must be present and in [1,5].
func SummaryFromAverages(quiz domain.Quiz, averages map[string]float64, overall int) (domain.ScoreSummary, error) {
	for id, avg := range averages {
		if _, ok := quiz.Domain(id); !ok {
			return domain.ScoreSummary{}, &domain.ValidationError{Field: "domainScores", Reason: fmt.Sprintf("unknown domain %q", id), Err: domain.ErrDomainNotFound}
		}
		if math.IsNaN(avg) || avg < 1 || avg > domain.MaxRating {
			return domain.ScoreSummary{}, &domain.ValidationError{Field: "domainScores", Reason: fmt.Sprintf("score %v for %q is outside 1-%d", avg, id, domain.MaxRating)}
		}
	}
	var missing []string
	for _, d := range quiz.Domains {
		if _, ok := averages[d.ID]; !ok {
			missing = append(missing, d.ID)
		}
	}
	if len(missing) > 0 {
		return domain.ScoreSummary{}, &domain.ValidationError{Field: "domainScores", Reason: "missing domains: " + strings.Join(missing, ", ")}
	}
	return summarize(quiz, averages, overall), nil
}

// OverallScore scales the sum of domain averages onto 0-100, rounding half up.
func OverallScore(averages []float64) int {
	if len(averages) == 0 {
		return 0
	}
	total := 0.0
	for _, avg := range averages {
		total += avg
	}
	return roundHalfUp(total * 100 / float64(domain.MaxRating*len(averages)))
}

// CategoryFor labels an overall score.
func CategoryFor(score int) string {
	switch {
	case score >= exitReadyThreshold:
		return "Exit Ready"
	case score >= solidBaseThreshold:
		return "Solid Foundation with Key Gaps"
	default:
		return "Exit Vulnerable"
	}
}

// InterpretationFor is the one-line explanation shown next to the category.
func InterpretationFor(score int) string {
	switch {
	case score >= exitReadyThreshold:
		return "Buyers will see you as a premium acquisition"
	case score >= solidBaseThreshold:
		return "Significant gaps that could cost you 20-40% in valuation"
	default:
		return "Major readiness work needed before going to market"
	}
}

// Analyze picks the strongest and weakest domains. Partial ties resolve to the
// first domain in quiz order; a full tie sets AllEqual instead.
func Analyze(scores []domain.DomainScore) domain.Analysis {
	if len(scores) == 0 {
		return domain.Analysis{}
	}
	distinct := make(map[float64]struct{}, len(scores))
	for _, s := range scores {
		distinct[s.Average] = struct{}{}
	}
	if len(distinct) == 1 {
		return domain.Analysis{AllEqual: true, EqualScore: scores[0].Average}
	}

	strongest, weakest := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s.Average > strongest.Average {
			strongest = s
		}
		if s.Average < weakest.Average {
			weakest = s
		}
	}
	return domain.Analysis{Strongest: &strongest, Weakest: &weakest}
}

// RankedByGap orders domains from the largest gap to the smallest.
func RankedByGap(scores []domain.DomainScore) []domain.DomainScore {
	ranked := append([]domain.DomainScore(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Gap > ranked[j].Gap
	})
	return ranked
}

func summarize(quiz domain.Quiz, averages map[string]float64, overall int) domain.ScoreSummary {
	scores := make([]domain.DomainScore, 0, len(quiz.Domains))
	for _, d := range quiz.Domains {
		scores = append(scores, domainScore(d, averages[d.ID]))
	}
	return domain.ScoreSummary{
		QuizID:         quiz.ID,
		Domains:        scores,
		Overall:        overall,
		Category:       CategoryFor(overall),
		Interpretation: InterpretationFor(overall),
		Analysis:       Analyze(scores),
	}
}

func domainScore(d domain.Domain, avg float64) domain.DomainScore {
	gap := math.Max(0, domain.MaxRating-avg)
	tenPoint := roundHalfUp(avg * 2)
	return domain.DomainScore{
		DomainID:     d.ID,
		Domain:       d.Name,
		Average:      avg,
		DisplayScore: fmt.Sprintf("%d/10", tenPoint),
		Gap:          gap,
		GapDisplay:   fmt.Sprintf("%.1f", gap),
		BuyerSignal:  d.BuyerSignal,
		RiskIfWeak:   d.RiskIfWeak,
		Opportunity:  opportunity(d.Opportunities, tenPoint),
	}
}

func opportunity(o domain.Opportunities, tenPoint int) string {
	switch {
	case tenPoint >= highOpportunityBand:
		return o.High
	case tenPoint >= midOpportunityBand:
		return o.Medium
	default:
		return o.Low
	}
}

func averagesInOrder(quiz domain.Quiz, averages map[string]float64) []float64 {
	out := make([]float64, 0, len(quiz.Domains))
	for _, d := range quiz.Domains {
		out = append(out, averages[d.ID])
	}
	return out
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
