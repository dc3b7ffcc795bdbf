package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"car_feedback/internal/domain"
)

type ReviewAnalyzer struct {
	classifier domain.SentimentClassifier
	timeout    time.Duration
}

// NewReviewAnalyzer bounds every classify call by timeout (0 disables the per-call bound).
func NewReviewAnalyzer(c domain.SentimentClassifier, timeout time.Duration) *ReviewAnalyzer {
	return &ReviewAnalyzer{classifier: c, timeout: timeout}
}

// Analyze classifies and tags one review. On failure the error is a *domain.ClassificationError
// and the returned result carries the review and its issues but no sentiment.
func (a *ReviewAnalyzer) Analyze(ctx context.Context, rv domain.Review) (domain.AnalysisResult, error) {
	res := domain.AnalysisResult{Review: rv, Issues: TagIssues(rv.Text)}

	if strings.TrimSpace(rv.Text) == "" {
		return res, a.fail(domain.ErrEmptyText)
	}

	cctx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	cl, err := a.classifier.Classify(cctx, rv.Text)
	if err != nil {
		return res, a.fail(err)
	}
	label, err := domain.ParseSentiment(string(cl.Label))
	if err != nil {
		return res, a.fail(err)
	}
	if math.IsNaN(cl.Confidence) || cl.Confidence < 0 || cl.Confidence > 1 {
		return res, a.fail(fmt.Errorf("%w: confidence %v out of range", domain.ErrMalformedResponse, cl.Confidence))
	}

	res.Sentiment = label
	res.Confidence = cl.Confidence
	res.Score = cl.Score
	return res, nil
}

func (a *ReviewAnalyzer) fail(err error) error {
	var ce *domain.ClassificationError
	if errors.As(err, &ce) {
		return err
	}
	return &domain.ClassificationError{Provider: a.classifier.Name(), Err: err}
}
