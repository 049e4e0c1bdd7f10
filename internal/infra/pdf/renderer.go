// Package pdf renders score summaries into an A4 report with gofpdf.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"exit-readiness-service/internal/app"
	"exit-readiness-service/internal/domain"
	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth = 210.0
	margin    = 15.0
	bodyWidth = pageWidth - 2*margin
)

type rgb struct{ r, g, b int }

var (
	brandColor = rgb{26, 54, 93}
	mutedColor = rgb{100, 110, 125}
	lineColor  = rgb{210, 215, 222}
	ready      = rgb{39, 132, 77}
	solid      = rgb{214, 142, 20}
	vulnerable = rgb{192, 57, 43}
)

type Renderer struct {
	title string
	now   func() time.Time
}

func NewRenderer(title string) *Renderer {
	if title == "" {
		title = "Exit Readiness Scorecard"
	}
	return &Renderer{title: title, now: time.Now}
}

// Render produces the report for one respondent.
func (r *Renderer) Render(ctx context.Context, summary domain.ScoreSummary, email string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(r.title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		setText(pdf, mutedColor)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s | Page %d", r.title, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// Header band.
	setFill(pdf, brandColor)
	pdf.Rect(0, 0, pageWidth, 32, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(margin, 9)
	pdf.CellFormat(bodyWidth, 9, tr(r.title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetX(margin)
	pdf.CellFormat(bodyWidth, 6, tr(fmt.Sprintf("Prepared for %s on %s", email, r.now().Format("January 2, 2006"))), "", 1, "L", false, 0, "")
	pdf.SetY(42)

	// Overall score.
	color := categoryColor(summary.Overall)
	setText(pdf, color)
	pdf.SetFont("Helvetica", "B", 40)
	pdf.CellFormat(45, 18, fmt.Sprintf("%d", summary.Overall), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(summary.Category), "", 2, "L", false, 0, "")
	setText(pdf, mutedColor)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 8, tr(summary.Interpretation), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	progressBar(pdf, float64(summary.Overall)/100, color)
	pdf.Ln(8)

	// Domain table.
	sectionTitle(pdf, tr("Score by domain"))
	widths := []float64{48, 20, 16, 48, 48}
	headers := []string{"Domain", "Score", "Gap", "Buyer signal", "Risk if weak"}
	pdf.SetFont("Helvetica", "B", 9)
	setFill(pdf, rgb{238, 241, 246})
	setText(pdf, brandColor)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "B", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	setText(pdf, rgb{30, 30, 30})
	setDraw(pdf, lineColor)
	for _, d := range summary.Domains {
		cells := []string{d.Domain, d.DisplayScore, d.GapDisplay, d.BuyerSignal, d.RiskIfWeak}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 8, tr(c), "B", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	// Strongest / weakest.
	sectionTitle(pdf, tr("Where you stand"))
	pdf.SetFont("Helvetica", "", 10)
	setText(pdf, rgb{30, 30, 30})
	if summary.Analysis.AllEqual {
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("Every domain scored %.1f out of 5. No single area stands out; lift them together.", summary.Analysis.EqualScore)), "", "L", false)
	} else {
		if s := summary.Analysis.Strongest; s != nil {
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("Strongest: %s (%s). Buyers read this as: %s.", s.Domain, s.DisplayScore, s.BuyerSignal)), "", "L", false)
		}
		if w := summary.Analysis.Weakest; w != nil {
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("Weakest: %s (%s, gap %s). Risk if left as is: %s.", w.Domain, w.DisplayScore, w.GapDisplay, w.RiskIfWeak)), "", "L", false)
		}
	}
	pdf.Ln(6)

	// Opportunities, biggest gap first.
	sectionTitle(pdf, tr("Your biggest opportunities"))
	for i, d := range app.RankedByGap(summary.Domains) {
		if d.Opportunity == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		setText(pdf, brandColor)
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("%d. %s (gap %s)", i+1, d.Domain, d.GapDisplay)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		setText(pdf, rgb{30, 30, 30})
		pdf.MultiCell(0, 5.5, tr(d.Opportunity), "", "L", false)
		pdf.Ln(2)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	setText(pdf, brandColor)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func progressBar(pdf *gofpdf.Fpdf, fraction float64, color rgb) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	y := pdf.GetY()
	setFill(pdf, rgb{230, 233, 238})
	pdf.Rect(margin, y, bodyWidth, 4, "F")
	setFill(pdf, color)
	pdf.Rect(margin, y, bodyWidth*fraction, 4, "F")
	pdf.SetY(y + 4)
}

func categoryColor(score int) rgb {
	switch app.CategoryFor(score) {
	case "Exit Ready":
		return ready
	case "Solid Foundation with Key Gaps":
		return solid
	default:
		return vulnerable
	}
}

func setFill(pdf *gofpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setText(pdf *gofpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
func setDraw(pdf *gofpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }
