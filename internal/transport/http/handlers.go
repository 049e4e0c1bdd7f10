package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"exit-readiness-service/internal/app"
	"exit-readiness-service/internal/domain"
	"go.uber.org/zap"
)

const (
	healthTimeout        = 5 * time.Second
	defaultSubmitTimeout = 30 * time.Second
)

// SubmissionPipeline runs a scorecard submission.
type SubmissionPipeline interface {
	Submit(ctx context.Context, sub domain.Submission, observe app.Observer) (domain.SubmissionResult, error)
}

// Scorecards serves quiz definitions and scores answers.
type Scorecards interface {
	Quiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Score(ctx context.Context, quizID string, answers domain.AnswerSet) (domain.ScoreSummary, error)
}

// ReportReader fetches stored reports.
type ReportReader interface {
	Get(ctx context.Context, key string) (domain.Blob, error)
}

type Deps struct {
	Pipeline   SubmissionPipeline
	Scorecards Scorecards
	Reports    ReportReader
	// CRM is probed by the health endpoint; Storage is probed when set.
	CRM           app.Pinger
	Storage       app.Pinger
	Logger        *zap.Logger
	SubmitTimeout time.Duration
}

type Handler struct {
	pipeline      SubmissionPipeline
	scorecards    Scorecards
	reports       ReportReader
	crm           app.Pinger
	storage       app.Pinger
	logger        *zap.Logger
	submitTimeout time.Duration
	now           func() time.Time
}

func NewHandler(deps Deps) *Handler {
	h := &Handler{
		pipeline:      deps.Pipeline,
		scorecards:    deps.Scorecards,
		reports:       deps.Reports,
		crm:           deps.CRM,
		storage:       deps.Storage,
		logger:        deps.Logger,
		submitTimeout: deps.SubmitTimeout,
		now:           time.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.submitTimeout <= 0 {
		h.submitTimeout = defaultSubmitTimeout
	}
	return h
}

// submitResponse keeps contactId and pdfUrl present (null) when unknown.
type submitResponse struct {
	SubmissionID string              `json:"submissionId,omitempty"`
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	OverallScore *int                `json:"overallScore,omitempty"`
	ContactID    *string             `json:"contactId"`
	PDFURL       *string             `json:"pdfUrl"`
	Warnings     []string            `json:"warnings"`
	Tags         []domain.TagOutcome `json:"tags,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func newSubmitResponse(result domain.SubmissionResult, err error) (int, submitResponse) {
	resp := submitResponse{
		SubmissionID: result.SubmissionID,
		Success:      result.Success,
		Message:      result.Message,
		Warnings:     result.Warnings,
		Tags:         result.Tags,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if result.ContactID != "" {
		resp.ContactID = &result.ContactID
	}
	if result.ReportURL != "" {
		resp.PDFURL = &result.ReportURL
	}
	if err == nil {
		resp.OverallScore = &result.OverallScore
		return http.StatusOK, resp
	}

	resp.Success = false
	var verr *domain.ValidationError
	var cerr *domain.ConfigurationError
	switch {
	case errors.As(err, &verr):
		resp.Error = verr.Error()
		if resp.Message == "" {
			resp.Message = verr.Error()
		}
		return http.StatusBadRequest, resp
	case errors.As(err, &cerr):
		resp.Error = "Service is not configured"
		resp.Message = resp.Error
		return http.StatusInternalServerError, resp
	default:
		resp.Error = "Failed to submit scorecard"
		if resp.Message == "" {
			resp.Message = resp.Error
		}
		return http.StatusInternalServerError, resp
	}
}

// pipelineContext detaches work from the client connection but bounds it overall.
func (h *Handler) pipelineContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), h.submitTimeout)
}

// SubmitScorecard handles POST /api/submit-scorecard.
func (h *Handler) SubmitScorecard(w http.ResponseWriter, r *http.Request) {
	sub, err := decodeSubmission(r)
	if err != nil {
		status, resp := newSubmitResponse(domain.SubmissionResult{}, err)
		writeJSON(w, status, resp)
		return
	}

	ctx, cancel := h.pipelineContext(r.Context())
	defer cancel()
	result, err := h.pipeline.Submit(ctx, sub, nil)
	status, resp := newSubmitResponse(result, err)
	writeJSON(w, status, resp)
}

// Report handles GET /api/report?id=.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing id parameter")
		return
	}

	blob, err := h.reports.Get(r.Context(), id)
	if errors.Is(err, domain.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "PDF not found")
		return
	}
	if err != nil {
		h.logger.Error("load report failed", zap.String("report_key", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve PDF")
		return
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(id, `"`, "")+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"activecampaign": checkStatus(h.crm.Ping(ctx))}
	if h.storage != nil {
		checks["storage"] = checkStatus(h.storage.Ping(ctx))
	}

	status, code := "healthy", http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, healthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

func checkStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var rejection *domain.UpstreamRejectionError
	switch {
	case errors.As(err, &rejection):
		return "error (status " + strconv.Itoa(rejection.Status) + ")"
	case errors.Is(err, context.DeadlineExceeded):
		return "error (timeout)"
	default:
		return "error (" + err.Error() + ")"
	}
}

// Quiz handles GET /api/quiz.
func (h *Handler) Quiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.scorecards.Quiz(r.Context(), r.URL.Query().Get("id"))
	if errors.Is(err, domain.ErrQuizNotFound) {
		writeError(w, http.StatusNotFound, "Quiz not found")
		return
	}
	if err != nil {
		h.logger.Error("load quiz failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load quiz")
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

type scoreRequest struct {
	QuizID  string         `json:"quizId"`
	Answers map[string]int `json:"answers"`
}

// Score handles POST /api/score.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxFieldSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	summary, err := h.scorecards.Score(r.Context(), req.QuizID, domain.AnswerSet(req.Answers))
	var verr *domain.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summary)
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrQuizNotFound):
		writeError(w, http.StatusNotFound, "Quiz not found")
	default:
		h.logger.Error("score failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to score answers")
	}
}

type clientErrorReport struct {
	SubmissionID string `json:"submissionId"`
	Error        string `json:"error"`
	Context      any    `json:"context"`
}

// LogError handles POST /api/log-error from the front-end.
func (h *Handler) LogError(w http.ResponseWriter, r *http.Request) {
	var report clientErrorReport
	if err := json.NewDecoder(io.LimitReader(r.Body, maxFieldSize)).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if report.SubmissionID == "" {
		report.SubmissionID = "unknown"
	}
	if report.Error == "" {
		report.Error = "no message"
	}
	if report.Context == nil {
		report.Context = map[string]any{}
	}
	h.logger.Error("frontend error",
		zap.String("type", "frontend-error"),
		zap.String("submission_id", report.SubmissionID),
		zap.String("error", report.Error),
		zap.Any("context", report.Context),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
