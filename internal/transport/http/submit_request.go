package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"exit-readiness-service/internal/domain"
)

const (
	maxJSONBody   = 20 << 20
	maxReportSize = 15 << 20
	maxFieldSize  = 64 << 10
)

// submitRequest is the wire shape of a scorecard submission, shared by the
// JSON body, the multipart form and the websocket payload.
type submitRequest struct {
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	FirstName    string             `json:"firstName"`
	QuizID       string             `json:"quizId"`
	OverallScore *float64           `json:"overallScore"`
	DomainScores map[string]float64 `json:"domainScores"`
	Answers      map[string]int     `json:"answers"`
	// PDF is base64, optionally as a data: URL.
	PDF          string `json:"pdf"`
	RenderReport bool   `json:"renderReport"`
}

func (req submitRequest) toSubmission() (domain.Submission, error) {
	sub := domain.Submission{
		Email:          req.Email,
		FirstName:      req.FirstName,
		QuizID:         req.QuizID,
		OverallScore:   req.OverallScore,
		DomainAverages: req.DomainScores,
		RenderReport:   req.RenderReport,
	}
	if sub.FirstName == "" {
		sub.FirstName = req.Name
	}
	if len(req.Answers) > 0 {
		sub.Answers = domain.AnswerSet(req.Answers)
	}
	if req.PDF != "" {
		data, err := decodeBase64PDF(req.PDF)
		if err != nil {
			return sub, err
		}
		sub.Report = data
	}
	return sub, nil
}

func decodeBase64PDF(raw string) ([]byte, error) {
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i > 0 {
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, &domain.ValidationError{Field: "pdf", Reason: "must be base64 encoded", Err: err}
	}
	if len(data) > maxReportSize {
		return nil, &domain.ValidationError{Field: "pdf", Reason: "too large"}
	}
	return data, nil
}

// decodeSubmission reads either a JSON body or a multipart form.
func decodeSubmission(r *http.Request) (domain.Submission, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		return decodeMultipart(r)
	}

	var req submitRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		return domain.Submission{}, &domain.ValidationError{Reason: "request body must be JSON or multipart/form-data", Err: err}
	}
	return req.toSubmission()
}

func decodeMultipart(r *http.Request) (domain.Submission, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return domain.Submission{}, &domain.ValidationError{Reason: "invalid multipart body", Err: err}
	}

	var req submitRequest
	var report []byte
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Submission{}, &domain.ValidationError{Reason: "invalid multipart body", Err: err}
		}
		if part.FormName() == "pdf" && part.FileName() != "" {
			report, err = readPart(part, maxReportSize)
		} else {
			err = applyFormField(&req, part)
		}
		part.Close()
		if err != nil {
			return domain.Submission{}, err
		}
	}

	sub, err := req.toSubmission()
	if err != nil {
		return sub, err
	}
	if len(report) > 0 {
		sub.Report = report
	}
	return sub, nil
}

func applyFormField(req *submitRequest, part *multipart.Part) error {
	raw, err := readPart(part, maxFieldSize)
	if err != nil {
		return err
	}
	value := strings.TrimSpace(string(raw))
	name := part.FormName()
	invalid := func(err error) error {
		return &domain.ValidationError{Field: name, Reason: "malformed value", Err: err}
	}

	switch name {
	case "email":
		req.Email = value
	case "name":
		req.Name = value
	case "firstName":
		req.FirstName = value
	case "quizId":
		req.QuizID = value
	case "overallScore":
		if value == "" {
			return nil
		}
		score, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return invalid(err)
		}
		req.OverallScore = &score
	case "domainScores":
		if value == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(value), &req.DomainScores); err != nil {
			return invalid(err)
		}
	case "answers":
		if value == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(value), &req.Answers); err != nil {
			return invalid(err)
		}
	case "pdf":
		req.PDF = value
	case "renderReport":
		req.RenderReport = value == "true" || value == "1" || value == "on"
	}
	return nil
}

func readPart(part *multipart.Part, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return nil, &domain.ValidationError{Field: part.FormName(), Reason: "unreadable part", Err: err}
	}
	if int64(len(data)) > limit {
		return nil, &domain.ValidationError{Field: part.FormName(), Reason: fmt.Sprintf("exceeds %d bytes", limit)}
	}
	return data, nil
}
