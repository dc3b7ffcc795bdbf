package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"car_feedback/internal/domain"
)

type QueryService struct {
	repo     domain.BatchRepository
	cache    domain.Cache
	cacheTTL time.Duration
	report   domain.ReportExporter
	charts   domain.ChartRenderer
}

func NewQueryService(r domain.BatchRepository, c domain.Cache, ttl time.Duration, report domain.ReportExporter, charts domain.ChartRenderer) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, report: report, charts: charts}
}

// GetBatch is a read-through cache over the repository. Batches never change once
// stored, so entries only expire by TTL.
func (s *QueryService) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	key := fmt.Sprintf("batch:%s", id)
	var b domain.Batch
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &b); ok {
			// summary is derived, recompute rather than trust the cached copy
			b.Summary = domain.Summarize(b.Results)
			return b, nil
		}
	}
	b, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return domain.Batch{}, err
	}
	b.Summary = domain.Summarize(b.Results)
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, b, int(s.cacheTTL.Seconds()))
	}
	return b, nil
}

func (s *QueryService) ListBatches(ctx context.Context, limit int) ([]domain.BatchInfo, error) {
	return s.repo.ListBatches(ctx, limit)
}

func (s *QueryService) Summary(ctx context.Context, id string) (domain.BatchSummary, error) {
	b, err := s.GetBatch(ctx, id)
	if err != nil {
		return domain.BatchSummary{}, err
	}
	return b.Summary, nil
}

// WriteReport renders the batch's Word report into w.
func (s *QueryService) WriteReport(ctx context.Context, id string, w io.Writer) error {
	b, err := s.GetBatch(ctx, id)
	if err != nil {
		return err
	}
	return s.report.Export(w, b.Results)
}

func (s *QueryService) WriteCharts(ctx context.Context, id string, w io.Writer) error {
	b, err := s.GetBatch(ctx, id)
	if err != nil {
		return err
	}
	return s.charts.Render(w, b.Summary)
}
