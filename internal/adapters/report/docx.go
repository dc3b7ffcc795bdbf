package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	docx "github.com/fumiama/go-docx"

	"car_feedback/internal/domain"
)

const (
	Title     = "Car Review Analysis Report"
	separator = "----------------------------------------" // 40 dashes
)

// Exporter renders analyzed reviews into a Word document, one section per review.
type Exporter struct {
	author string
}

func NewExporter(author string) *Exporter {
	if author == "" {
		author = "Customer Feedback Team"
	}
	return &Exporter{author: author}
}

// Export writes the .docx to w. Any failure is an *domain.ExportError.
func (e *Exporter) Export(w io.Writer, results []domain.AnalysisResult) error {
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().Justification("center").AddText(Title).Bold().Size("32")
	doc.AddParagraph().AddText("Prepared by: " + e.author).Italic()

	for i, r := range results {
		doc.AddParagraph().AddText(fmt.Sprintf("Review %d", i+1)).Bold().Size("26")

		p := doc.AddParagraph()
		p.AddText("Feedback: ").Bold()
		p.AddText(r.Review.Text)

		for _, line := range detailLines(r) {
			doc.AddParagraph().AddText(line)
		}
		doc.AddParagraph().AddText(separator)
	}

	if _, err := doc.WriteTo(w); err != nil {
		return &domain.ExportError{Format: "docx", Err: err}
	}
	return nil
}

func detailLines(r domain.AnalysisResult) []string {
	sentiment := "Unavailable"
	if !r.Failed() {
		sentiment = capitalize(string(r.Sentiment))
	}

	rating := "N/A"
	if r.Review.Rating != nil {
		rating = strconv.FormatFloat(*r.Review.Rating, 'f', -1, 64)
	}

	issues := "None"
	if len(r.Issues) > 0 {
		names := make([]string, len(r.Issues))
		for i, is := range r.Issues {
			names[i] = string(is)
		}
		issues = strings.Join(names, ", ")
	}

	return []string{
		"Sentiment: " + sentiment,
		"Rating: " + rating,
		"Issues Detected: " + issues,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
