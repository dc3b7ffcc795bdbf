package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"car_feedback/internal/adapters/observability"
	"car_feedback/internal/domain"
)

type Analyzer interface {
	Analyze(ctx context.Context, rv domain.Review) (domain.AnalysisResult, error)
}

type BatchAggregator struct {
	analyzer Analyzer
	workers  int
}

func NewBatchAggregator(a Analyzer, workers int) *BatchAggregator {
	if workers <= 0 {
		workers = 1
	}
	return &BatchAggregator{analyzer: a, workers: workers}
}

// Aggregate analyzes every review and returns results in input order. A review whose
// classification fails stays in results with Failure set and is left out of the summary.
func (g *BatchAggregator) Aggregate(ctx context.Context, reviews []domain.Review) ([]domain.AnalysisResult, domain.BatchSummary) {
	results := make([]domain.AnalysisResult, len(reviews))
	sem := semaphore.NewWeighted(int64(g.workers))
	var wg sync.WaitGroup

	for i, rv := range reviews {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Int("from_row", i+1).Int("skipped", len(reviews)-i).Err(err).Msg("batch cancelled, remaining reviews not classified")
			for j := i; j < len(reviews); j++ {
				results[j] = failedResult(reviews[j], &domain.ClassificationError{Err: err})
				observability.ObserveClassification("", true)
			}
			break
		}

		wg.Add(1)
		go func(idx int, rv domain.Review) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := g.analyzer.Analyze(ctx, rv)
			if err != nil {
				log.Warn().Int("row", idx+1).Err(err).Msg("review classification failed")
				res = failedResult(rv, err)
			}
			observability.ObserveClassification(string(res.Sentiment), res.Failed())
			results[idx] = res
		}(i, rv)
	}
	wg.Wait()

	return results, domain.Summarize(results)
}

func failedResult(rv domain.Review, err error) domain.AnalysisResult {
	return domain.AnalysisResult{
		Review:  rv,
		Issues:  TagIssues(rv.Text),
		Failure: err.Error(),
		Err:     err,
	}
}
