package app_test

import (
	"context"
	"io"
	"sync"
	"time"

	"car_feedback/internal/domain"
)

// ---- fakes ----

type fakeClassifier struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]domain.Classification
	errs    map[string]error
	block   map[string]bool // wait for ctx to end
	delay   time.Duration
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{
		calls:   map[string]int{},
		results: map[string]domain.Classification{},
		errs:    map[string]error{},
		block:   map[string]bool{},
	}
}

func (f *fakeClassifier) Name() string { return "fake" }

func (f *fakeClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	f.mu.Lock()
	f.calls[text]++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}
	if f.block[text] {
		<-ctx.Done()
		return domain.Classification{}, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Classification{}, ctx.Err()
		}
	}
	if err, ok := f.errs[text]; ok {
		return domain.Classification{}, err
	}
	if r, ok := f.results[text]; ok {
		return r, nil
	}
	return domain.Classification{Label: domain.SentimentNeutral, Confidence: 0.5}, nil
}

func (f *fakeClassifier) callsFor(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

func (f *fakeClassifier) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeRepo struct {
	mu      sync.Mutex
	batches map[string]domain.Batch
	saveErr error
	gets    int
}

func (r *fakeRepo) SaveBatch(ctx context.Context, b domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.batches == nil {
		r.batches = map[string]domain.Batch{}
	}
	r.batches[b.ID] = b
	return nil
}

func (r *fakeRepo) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	b, ok := r.batches[id]
	if !ok {
		return domain.Batch{}, domain.ErrNotFound
	}
	return b, nil
}

func (r *fakeRepo) ListBatches(ctx context.Context, limit int) ([]domain.BatchInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.BatchInfo
	for _, b := range r.batches {
		out = append(out, b.Info())
	}
	return out, nil
}

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.Batch:
		*d = v.(domain.Batch)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

type fakeNotifier struct {
	got []domain.Batch
	err error
}

func (n *fakeNotifier) NotifyBatch(ctx context.Context, b domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.got = append(n.got, b)
	return n.err
}

type fakeExporter struct{ n int }

func (e *fakeExporter) Export(w io.Writer, results []domain.AnalysisResult) error {
	e.n = len(results)
	_, err := io.WriteString(w, "report")
	return err
}

type fakeCharts struct{ total int }

func (c *fakeCharts) Render(w io.Writer, s domain.BatchSummary) error {
	c.total = s.Total()
	_, err := io.WriteString(w, "<html></html>")
	return err
}

func ptr[T any](v T) *T { return &v }
