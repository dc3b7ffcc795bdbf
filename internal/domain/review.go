package domain

import (
	"fmt"
	"strings"
)

type Review struct {
	CustomerID *string
	Text       string
	Rating     *float64
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sentiments lists the label space in display order.
var Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}

// ParseSentiment normalizes a provider label onto the three-value enumeration.
// Anything else is ErrUnrecognizedLabel; it is never guessed to neutral.
func ParseSentiment(raw string) (Sentiment, error) {
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(raw))); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedLabel, raw)
	}
}

// Classification is what a SentimentClassifier returns for one text.
type Classification struct {
	Label      Sentiment
	Confidence float64 // 0..1
	Score      float64 // provider-native score, e.g. -1..1 for Watson
}

type AnalysisResult struct {
	Review     Review
	Sentiment  Sentiment
	Confidence float64
	Score      float64
	Issues     []IssueCategory // sorted, unique
	Failure    string          // set when classification failed
	Err        error           `json:"-"`
}

func (r AnalysisResult) Failed() bool { return r.Failure != "" }

type BatchSummary struct {
	SentimentCounts map[Sentiment]int
	IssueCounts     map[IssueCategory]int
}

// NewBatchSummary returns a summary with every sentiment and category present at zero.
func NewBatchSummary() BatchSummary {
	s := BatchSummary{
		SentimentCounts: make(map[Sentiment]int, len(Sentiments)),
		IssueCounts:     make(map[IssueCategory]int, len(IssueCategories)),
	}
	for _, v := range Sentiments {
		s.SentimentCounts[v] = 0
	}
	for _, c := range IssueCategories {
		s.IssueCounts[c] = 0
	}
	return s
}

// Summarize tallies successful results only; failed ones are skipped entirely.
func Summarize(results []AnalysisResult) BatchSummary {
	s := NewBatchSummary()
	for _, r := range results {
		if r.Failed() {
			continue
		}
		s.SentimentCounts[r.Sentiment]++
		for _, is := range r.Issues {
			s.IssueCounts[is]++
		}
	}
	return s
}

// Total is the number of successfully analyzed reviews in the summary.
func (s BatchSummary) Total() int {
	n := 0
	for _, c := range s.SentimentCounts {
		n += c
	}
	return n
}

type IssueCount struct {
	Issue IssueCategory
	Count int
}

// RankedIssues returns non-zero issue counts, highest first, ties by name.
func (s BatchSummary) RankedIssues() []IssueCount {
	out := make([]IssueCount, 0, len(s.IssueCounts))
	for is, n := range s.IssueCounts {
		if n > 0 {
			out = append(out, IssueCount{Issue: is, Count: n})
		}
	}
	sortIssueCounts(out)
	return out
}

// IssueTable returns every category with its count, ordered like RankedIssues.
func (s BatchSummary) IssueTable() []IssueCount {
	out := make([]IssueCount, 0, len(IssueCategories))
	for _, is := range IssueCategories {
		out = append(out, IssueCount{Issue: is, Count: s.IssueCounts[is]})
	}
	sortIssueCounts(out)
	return out
}
