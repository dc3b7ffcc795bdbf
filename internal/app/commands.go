package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"car_feedback/internal/adapters/observability"
	"car_feedback/internal/domain"
)

// persistTimeout bounds saving and announcing a batch once analysis has finished.
const persistTimeout = 30 * time.Second

type AnalysisService struct {
	classifier domain.SentimentClassifier
	repo       domain.BatchRepository
	notifier   domain.Notifier
	timeout    time.Duration
	workers    int
}

// NewAnalysisService wires the pipeline. repo and notifier may be nil.
func NewAnalysisService(c domain.SentimentClassifier, r domain.BatchRepository, n domain.Notifier, timeout time.Duration, workers int) *AnalysisService {
	return &AnalysisService{classifier: c, repo: r, notifier: n, timeout: timeout, workers: workers}
}

// RunBatch analyzes reviews with a fresh session cache, then persists and announces the batch.
// Per-review classification failures are recorded in the results and never fail the call.
// Cancelling ctx fails the reviews not yet classified; the partial batch is still persisted.
func (s *AnalysisService) RunBatch(ctx context.Context, source string, reviews []domain.Review) (domain.Batch, error) {
	start := time.Now()

	session := NewSessionCache(s.classifier, s.timeout)
	agg := NewBatchAggregator(NewReviewAnalyzer(session, s.timeout), s.workers)
	results, summary := agg.Aggregate(ctx, reviews)

	b := domain.Batch{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
		Results:   results,
		Summary:   summary,
	}
	failed := b.FailedCount()
	observability.ObserveBatch(len(results), failed, time.Since(start))
	log.Info().
		Str("batch", b.ID).
		Str("source", source).
		Int("reviews", len(results)).
		Int("failed", failed).
		Int("distinct_texts", session.Len()).
		Dur("duration", time.Since(start)).
		Msg("batch analyzed")

	// analysis may have been cut short; whatever was analyzed is still stored and announced
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if s.repo != nil {
		if err := s.repo.SaveBatch(pctx, b); err != nil {
			// the batch is returned so callers can still show it
			return b, fmt.Errorf("save batch %s: %w", b.ID, err)
		}
	}

	// best-effort: a notification failure does not undo a stored batch
	if s.notifier != nil {
		if err := s.notifier.NotifyBatch(pctx, b); err != nil {
			log.Warn().Str("batch", b.ID).Err(err).Msg("batch notification failed")
		}
	}
	return b, nil
}
