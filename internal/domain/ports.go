package domain

import (
	"context"
	"io"
	"time"
)

type SentimentClassifier interface {
	Name() string
	Classify(ctx context.Context, text string) (Classification, error)
}

type BatchRepository interface {
	// Write paths
	SaveBatch(ctx context.Context, b Batch) error

	// Read paths
	GetBatch(ctx context.Context, id string) (Batch, error)
	ListBatches(ctx context.Context, limit int) ([]BatchInfo, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type ReportExporter interface {
	Export(w io.Writer, results []AnalysisResult) error
}

type ChartRenderer interface {
	Render(w io.Writer, s BatchSummary) error
}

type Notifier interface {
	NotifyBatch(ctx context.Context, b Batch) error
}

// Batch is one analyzed upload. Summary is derived from Results and is not stored.
type Batch struct {
	ID        string
	Source    string // csv|json|demo|file name
	CreatedAt time.Time
	Results   []AnalysisResult
	Summary   BatchSummary
}

func (b Batch) FailedCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

func (b Batch) Info() BatchInfo {
	return BatchInfo{
		ID:        b.ID,
		Source:    b.Source,
		CreatedAt: b.CreatedAt,
		Total:     len(b.Results),
		Failed:    b.FailedCount(),
	}
}

type BatchInfo struct {
	ID        string
	Source    string
	CreatedAt time.Time
	Total     int
	Failed    int
}
