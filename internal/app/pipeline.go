package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"exit-readiness-service/internal/domain"
	"exit-readiness-service/internal/retry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is a step of the submission pipeline.
type State string

const (
	StateValidating       State = "validating"
	StateRenderingReport  State = "rendering_report"
	StateUpsertingContact State = "upserting_contact"
	StateAddingToList     State = "adding_to_list"
	StateTagging          State = "tagging"
	StateCompleted        State = "completed"
)

// Outcome describes how a state ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeWarn    Outcome = "warn"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Event is emitted once per state transition.
type Event struct {
	SubmissionID   string  `json:"submissionId"`
	State          State   `json:"state"`
	Outcome        Outcome `json:"outcome"`
	Detail         string  `json:"detail,omitempty"`
	UpstreamStatus int     `json:"upstreamStatus,omitempty"`
}

// Observer receives pipeline events for a single submission. It is called from
// the submitting goroutine only.
type Observer func(Event)

// StepError marks the fatal step of a failed submission.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

const reportContentType = "application/pdf"

// FieldMapping maps scores onto CRM custom field ids. Empty ids are not sent.
type FieldMapping struct {
	OverallScore string
	ReportURL    string
	// Domains maps a quiz domain id to the CRM field holding its average.
	Domains map[string]string
}

type PipelineConfig struct {
	ListID         string
	CompletedTag   string
	ScoreTagPrefix string
	Fields         FieldMapping
	StoragePolicy  retry.Policy
	// ReportURL turns a blob key into the reference stored on the contact.
	ReportURL     func(key string) string
	DefaultQuizID string
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithIDSource replaces the submission id generator.
func WithIDSource(next func() string) PipelineOption {
	return func(p *Pipeline) { p.newID = next }
}

// Pipeline runs one submission through validation, report storage and CRM delivery.
// It holds no per-submission state; concurrent Submit calls are independent.
type Pipeline struct {
	quizzes  QuizRepository
	renderer ReportRenderer
	blobs    BlobStore
	crm      CRMClient
	cfg      PipelineConfig
	logger   *zap.Logger
	newID    func() string
}

func NewPipeline(quizzes QuizRepository, renderer ReportRenderer, blobs BlobStore, crm CRMClient, cfg PipelineConfig, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if cfg.CompletedTag == "" {
		cfg.CompletedTag = "exit-readiness-completed"
	}
	if cfg.ScoreTagPrefix == "" {
		cfg.ScoreTagPrefix = "score-"
	}
	if cfg.ReportURL == nil {
		cfg.ReportURL = func(key string) string { return key }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		quizzes:  quizzes,
		renderer: renderer,
		blobs:    blobs,
		crm:      crm,
		cfg:      cfg,
		logger:   logger,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// submission is the working record of one run.
type submission struct {
	id      string
	email   string
	overall int
	summary *domain.ScoreSummary
	log     *zap.Logger
	observe Observer
	result  domain.SubmissionResult
}

func (s *submission) emit(state State, outcome Outcome, err error) {
	ev := Event{SubmissionID: s.id, State: state, Outcome: outcome}
	fields := []zap.Field{
		zap.String("state", string(state)),
		zap.String("outcome", string(outcome)),
	}
	if err != nil {
		ev.Detail = err.Error()
		fields = append(fields, zap.Error(err))
		var rejection *domain.UpstreamRejectionError
		if errors.As(err, &rejection) {
			ev.UpstreamStatus = rejection.Status
			fields = append(fields, zap.Int("upstream_status", rejection.Status), zap.String("upstream_body", rejection.Body))
		}
	}
	switch outcome {
	case OutcomeError:
		s.log.Error("submission state", fields...)
	case OutcomeWarn:
		s.log.Warn("submission state", fields...)
	default:
		s.log.Info("submission state", fields...)
	}
	if s.observe != nil {
		s.observe(ev)
	}
}

func (s *submission) warn(msg string) {
	s.result.Warnings = append(s.result.Warnings, msg)
}

// Submit runs the pipeline. A *domain.ValidationError is returned when input is
// rejected before any external call; a *StepError when a fatal CRM step fails.
// The result is meaningful in every case.
func (p *Pipeline) Submit(ctx context.Context, in domain.Submission, observe Observer) (domain.SubmissionResult, error) {
	s := &submission{id: p.newID(), observe: observe}
	s.log = p.logger.With(zap.String("submission_id", s.id))
	s.result = domain.SubmissionResult{SubmissionID: s.id, Warnings: []string{}}

	if err := p.validate(ctx, s, in); err != nil {
		s.emit(StateValidating, OutcomeError, err)
		return p.fail(s, err.Error(), err)
	}
	s.emit(StateValidating, OutcomeOK, nil)
	s.result.OverallScore = s.overall

	p.storeReport(ctx, s, in)

	contact := p.contactFor(s, in.FirstName)
	contactID, err := p.upsertContact(ctx, contact)
	s.result.ContactID = contactID
	if err != nil {
		s.emit(StateUpsertingContact, OutcomeError, err)
		return p.fail(s, "Failed to create or update contact", &StepError{Step: StateUpsertingContact, Err: err})
	}
	s.emit(StateUpsertingContact, OutcomeOK, nil)

	if err := p.crm.AddToList(ctx, contactID, p.cfg.ListID); err != nil {
		s.emit(StateAddingToList, OutcomeError, err)
		return p.fail(s, "Failed to add contact to list", &StepError{Step: StateAddingToList, Err: err})
	}
	s.emit(StateAddingToList, OutcomeOK, nil)

	s.result.Tags = p.applyTags(ctx, s, contactID)

	s.result.Success = true
	s.result.Message = "Scorecard submitted successfully"
	outcome := OutcomeOK
	if len(s.result.Warnings) > 0 {
		s.result.Message = "Scorecard submitted with warnings"
		outcome = OutcomeWarn
	}
	s.emit(StateCompleted, outcome, nil)
	return s.result, nil
}

func (p *Pipeline) fail(s *submission, message string, err error) (domain.SubmissionResult, error) {
	s.result.Success = false
	s.result.Message = message
	s.emit(StateCompleted, OutcomeError, err)
	return s.result, err
}

func (p *Pipeline) validate(ctx context.Context, s *submission, in domain.Submission) error {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return &domain.ValidationError{Field: "email", Reason: "required"}
	}
	if !strings.Contains(email, "@") {
		return &domain.ValidationError{Field: "email", Reason: "must contain @"}
	}
	s.email = email

	switch {
	case len(in.Answers) > 0:
		quiz, err := p.quiz(ctx, in.QuizID)
		if err != nil {
			return err
		}
		summary, err := ComputeScores(quiz, in.Answers)
		if err != nil {
			return err
		}
		s.summary = &summary
		s.overall = summary.Overall
		if in.OverallScore != nil && roundHalfUp(*in.OverallScore) != summary.Overall {
			s.log.Debug("supplied overall score ignored",
				zap.Float64("supplied", *in.OverallScore), zap.Int("computed", summary.Overall))
		}
	case in.OverallScore != nil:
		score := *in.OverallScore
		if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 100 {
			return &domain.ValidationError{Field: "overallScore", Reason: "must be between 0 and 100"}
		}
		s.overall = roundHalfUp(score)
		if len(in.DomainAverages) > 0 {
			quiz, err := p.quiz(ctx, in.QuizID)
			if err != nil {
				return err
			}
			summary, err := SummaryFromAverages(quiz, in.DomainAverages, s.overall)
			if err != nil {
				return err
			}
			s.summary = &summary
		}
	default:
		return &domain.ValidationError{Field: "overallScore", Reason: "required"}
	}
	return nil
}

func (p *Pipeline) quiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quizID == "" {
		quizID = p.cfg.DefaultQuizID
	}
	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if errors.Is(err, domain.ErrQuizNotFound) {
		return domain.Quiz{}, &domain.ValidationError{Field: "quizId", Reason: fmt.Sprintf("unknown quiz %q", quizID), Err: err}
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz %q: %w", quizID, err)
	}
	return quiz, nil
}

// storeReport never fails the submission; problems become warnings.
func (p *Pipeline) storeReport(ctx context.Context, s *submission, in domain.Submission) {
	data := in.Report
	if len(data) == 0 {
		if !in.RenderReport || s.summary == nil {
			s.emit(StateRenderingReport, OutcomeSkipped, nil)
			return
		}
		if p.renderer == nil {
			s.warn("Report rendering is not configured")
			s.emit(StateRenderingReport, OutcomeWarn, errors.New("no renderer"))
			return
		}
		rendered, err := p.renderer.Render(ctx, *s.summary, s.email)
		if err != nil {
			s.warn("Report could not be generated")
			s.emit(StateRenderingReport, OutcomeWarn, err)
			return
		}
		data = rendered
	}
	if p.blobs == nil {
		s.warn("Report storage is not configured")
		s.emit(StateRenderingReport, OutcomeWarn, errors.New("no blob store"))
		return
	}

	key := reportKey()
	err := p.cfg.StoragePolicy.Do(ctx, func(attempt int, err error, wait time.Duration) {
		s.log.Warn("retrying report upload", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}, func(ctx context.Context) error {
		return p.blobs.Put(ctx, key, data, reportContentType)
	})
	if err != nil {
		s.warn("Report could not be stored")
		s.emit(StateRenderingReport, OutcomeWarn, err)
		return
	}
	s.result.ReportKey = key
	s.result.ReportURL = p.cfg.ReportURL(key)
	s.emit(StateRenderingReport, OutcomeOK, nil)
}

func (p *Pipeline) contactFor(s *submission, firstName string) domain.Contact {
	contact := domain.Contact{Email: s.email, FirstName: strings.TrimSpace(firstName)}
	if id := p.cfg.Fields.OverallScore; id != "" {
		contact.Fields = append(contact.Fields, domain.FieldValue{Field: id, Value: strconv.Itoa(s.overall)})
	}
	if s.summary != nil {
		for _, d := range s.summary.Domains {
			if id := p.cfg.Fields.Domains[d.DomainID]; id != "" {
				contact.Fields = append(contact.Fields, domain.FieldValue{Field: id, Value: strconv.FormatFloat(d.Average, 'f', -1, 64)})
			}
		}
	}
	if id := p.cfg.Fields.ReportURL; id != "" && s.result.ReportURL != "" {
		contact.Fields = append(contact.Fields, domain.FieldValue{Field: id, Value: s.result.ReportURL})
	}
	return contact
}

func (p *Pipeline) upsertContact(ctx context.Context, contact domain.Contact) (string, error) {
	id, err := p.crm.CreateContact(ctx, contact)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrDuplicateContact) {
		return "", fmt.Errorf("create contact: %w", err)
	}
	id, err = p.crm.FindContactByEmail(ctx, contact.Email)
	if err != nil {
		return "", fmt.Errorf("find existing contact: %w", err)
	}
	if err := p.crm.UpdateContact(ctx, id, contact); err != nil {
		return id, fmt.Errorf("update contact %s: %w", id, err)
	}
	return id, nil
}

// applyTags attempts every tag concurrently; outcomes keep tag order.
func (p *Pipeline) applyTags(ctx context.Context, s *submission, contactID string) []domain.TagOutcome {
	names := []string{p.cfg.CompletedTag, p.cfg.ScoreTagPrefix + strconv.Itoa(s.overall)}
	outcomes := make([]domain.TagOutcome, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			outcomes[i] = p.applyTag(ctx, contactID, name)
			return nil
		})
	}
	_ = g.Wait()

	outcome := OutcomeOK
	var failed []string
	for _, o := range outcomes {
		if o.Warning != "" {
			s.warn(o.Warning)
			failed = append(failed, o.Name)
			s.log.Warn("tag not applied", zap.String("tag", o.Name), zap.String("reason", o.Warning))
		}
	}
	var err error
	if len(failed) > 0 {
		outcome = OutcomeWarn
		err = fmt.Errorf("tags not applied: %s", strings.Join(failed, ", "))
	}
	s.emit(StateTagging, outcome, err)
	return outcomes
}

func (p *Pipeline) applyTag(ctx context.Context, contactID, name string) domain.TagOutcome {
	out := domain.TagOutcome{Name: name}
	tagID, err := p.crm.FindTagByName(ctx, name)
	if errors.Is(err, domain.ErrTagNotFound) {
		tagID, err = p.crm.CreateTag(ctx, name)
		if errors.Is(err, domain.ErrDuplicateTag) {
			tagID, err = p.crm.FindTagByName(ctx, name)
		}
	}
	if err != nil {
		out.Warning = fmt.Sprintf("Failed to resolve tag %q: %v", name, err)
		return out
	}
	out.TagID = tagID

	err = p.crm.AttachTag(ctx, contactID, tagID)
	if err != nil && !errors.Is(err, domain.ErrDuplicateTag) {
		out.Warning = fmt.Sprintf("Failed to add tag %q: %v", name, err)
		return out
	}
	out.Attached = true
	return out
}

func reportKey() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "exit-readiness-" + raw[:16] + ".pdf"
}
