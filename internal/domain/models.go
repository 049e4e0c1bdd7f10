package domain

import "time"

// MaxRating is the highest rating a question accepts; it is also the ceiling a domain gap is measured against.
const MaxRating = 5

// Option is one selectable answer of a question.
type Option struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Question models a rated quiz question belonging to a single domain.
type Question struct {
	ID          string   `json:"id"`
	DomainID    string   `json:"domainId"`
	Number      int      `json:"number"`
	Title       string   `json:"title"`
	Prompt      string   `json:"prompt"`
	Description string   `json:"description,omitempty"`
	Options     []Option `json:"options"`
}

// Opportunities holds the advice shown for a domain at each score band.
type Opportunities struct {
	High   string `json:"high"`
	Medium string `json:"medium"`
	Low    string `json:"low"`
}

// Domain is one of the assessment categories questions are grouped into.
type Domain struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	BuyerSignal   string        `json:"buyerSignal"`
	RiskIfWeak    string        `json:"riskIfWeak"`
	Opportunities Opportunities `json:"opportunities"`
}

// Quiz is the scorecard configuration: domains and their questions, both ordered.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Domains   []Domain   `json:"domains"`
	Questions []Question `json:"questions"`
}

// Domain returns the domain with the given id.
func (q Quiz) Domain(id string) (Domain, bool) {
	for _, d := range q.Domains {
		if d.ID == id {
			return d, true
		}
	}
	return Domain{}, false
}

// Question returns the question with the given id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// AnswerSet maps question ids to ratings in [1,5]; 0 means unanswered.
type AnswerSet map[string]int

// NewAnswerSet returns an answer set with every question of quiz unanswered.
func NewAnswerSet(quiz Quiz) AnswerSet {
	answers := make(AnswerSet, len(quiz.Questions))
	for _, q := range quiz.Questions {
		answers[q.ID] = 0
	}
	return answers
}

// Unanswered lists, in quiz order, the questions without a rating.
func (a AnswerSet) Unanswered(quiz Quiz) []string {
	var missing []string
	for _, q := range quiz.Questions {
		if a[q.ID] == 0 {
			missing = append(missing, q.ID)
		}
	}
	return missing
}

// DomainScore is the derived result for one domain.
type DomainScore struct {
	DomainID     string  `json:"domainId"`
	Domain       string  `json:"domain"`
	Average      float64 `json:"score"`
	DisplayScore string  `json:"displayScore"`
	Gap          float64 `json:"gap"`
	GapDisplay   string  `json:"gapDisplay"`
	BuyerSignal  string  `json:"buyerSignal"`
	RiskIfWeak   string  `json:"risk"`
	Opportunity  string  `json:"opportunity,omitempty"`
}

// Analysis names the strongest and weakest domains. When every domain scored the
// same, AllEqual is set and neither Strongest nor Weakest is populated.
type Analysis struct {
	AllEqual   bool         `json:"allEqual"`
	EqualScore float64      `json:"equalScore,omitempty"`
	Strongest  *DomainScore `json:"strongest,omitempty"`
	Weakest    *DomainScore `json:"weakest,omitempty"`
}

// ScoreSummary is everything the scoring engine derives from one answer set.
type ScoreSummary struct {
	QuizID         string        `json:"quizId"`
	Domains        []DomainScore `json:"domainScores"`
	Overall        int           `json:"overallScore"`
	Category       string        `json:"category"`
	Interpretation string        `json:"interpretation"`
	Analysis       Analysis      `json:"analysis"`
}

// FieldValue is a single custom field assignment on a CRM contact.
type FieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Contact is the CRM payload built for a respondent.
type Contact struct {
	Email     string
	FirstName string
	Fields    []FieldValue
}

// Blob is a stored report.
type Blob struct {
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

// Submission is the caller's input to the submission pipeline. Either Answers, or
// OverallScore (optionally with DomainAverages), must be supplied.
type Submission struct {
	Email          string
	FirstName      string
	QuizID         string
	OverallScore   *float64
	DomainAverages map[string]float64
	Answers        AnswerSet
	Report         []byte
	RenderReport   bool
}

// TagOutcome reports what happened to one tag during submission.
type TagOutcome struct {
	Name     string `json:"name"`
	TagID    string `json:"tagId,omitempty"`
	Attached bool   `json:"attached"`
	Warning  string `json:"warning,omitempty"`
}

// SubmissionResult is the structured outcome of one pipeline run.
type SubmissionResult struct {
	SubmissionID string       `json:"submissionId"`
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	OverallScore int          `json:"overallScore"`
	ContactID    string       `json:"contactId,omitempty"`
	ReportKey    string       `json:"reportKey,omitempty"`
	ReportURL    string       `json:"pdfUrl,omitempty"`
	Warnings     []string     `json:"warnings"`
	Tags         []TagOutcome `json:"tags,omitempty"`
}
