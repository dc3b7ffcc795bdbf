package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"car_feedback/internal/adapters/charts"
	httpserver "car_feedback/internal/adapters/http_server"
	"car_feedback/internal/adapters/report"
	"car_feedback/internal/app"
	"car_feedback/internal/domain"
)

// ---- fakes ----

// keywordClassifier labels by simple keywords and fails on "boom".
type keywordClassifier struct{}

func (keywordClassifier) Name() string { return "keywords" }

func (keywordClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "boom"):
		return domain.Classification{}, errors.New("provider down")
	case strings.Contains(t, "rude"), strings.Contains(t, "dirty"), strings.Contains(t, "late"):
		return domain.Classification{Label: domain.SentimentNegative, Confidence: 0.9, Score: -0.9}, nil
	case strings.Contains(t, "excellent"), strings.Contains(t, "smooth"):
		return domain.Classification{Label: domain.SentimentPositive, Confidence: 0.8, Score: 0.8}, nil
	default:
		return domain.Classification{Label: domain.SentimentNeutral, Confidence: 0.4}, nil
	}
}

// slowClassifier answers neutral after delay unless ctx ends first.
type slowClassifier struct{ delay time.Duration }

func (slowClassifier) Name() string { return "slow" }

func (c slowClassifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	select {
	case <-time.After(c.delay):
		return domain.Classification{Label: domain.SentimentNeutral, Confidence: 0.5}, nil
	case <-ctx.Done():
		return domain.Classification{}, ctx.Err()
	}
}

type memRepo struct {
	mu      sync.Mutex
	batches map[string]domain.Batch
}

func (m *memRepo) SaveBatch(ctx context.Context, b domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.ID] = b
	return nil
}

func (m *memRepo) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return domain.Batch{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memRepo) ListBatches(ctx context.Context, limit int) ([]domain.BatchInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.BatchInfo{}
	for _, b := range m.batches {
		out = append(out, b.Info())
	}
	return out, nil
}

func newTestServer(t *testing.T, maxUpload int64) *httptest.Server {
	t.Helper()
	repo := &memRepo{batches: map[string]domain.Batch{}}
	q := app.NewQueryService(repo, nil, time.Minute, report.NewExporter("Test Team"), charts.NewRenderer())
	a := app.NewAnalysisService(keywordClassifier{}, repo, nil, time.Second, 2)

	s := httpserver.New(5 * time.Second)
	s.MountHandlers(&httpserver.Handlers{Q: q, A: a, MaxUpload: maxUpload})
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return ts
}

type batchResp struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Total   int    `json:"total"`
	Failed  int    `json:"failed"`
	Summary struct {
		Total           int            `json:"total"`
		SentimentCounts map[string]int `json:"sentiment_counts"`
		IssueCounts     map[string]int `json:"issue_counts"`
		TopIssues       []struct {
			Issue string `json:"issue"`
			Count int    `json:"count"`
		} `json:"top_issues"`
	} `json:"summary"`
	Results []struct {
		CustomerID *string  `json:"customer_id"`
		Review     string   `json:"review"`
		Rating     *float64 `json:"rating"`
		Sentiment  string   `json:"sentiment"`
		Issues     []string `json:"issues"`
		Failed     bool     `json:"failed"`
		Failure    string   `json:"failure"`
	} `json:"results"`
}

func decodeBatch(t *testing.T, res *http.Response) batchResp {
	t.Helper()
	defer res.Body.Close()
	var b batchResp
	if err := json.NewDecoder(res.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return b
}

func decodeProblem(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q", ct)
	}
	var p map[string]any
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

const sampleCSV = "Customer_ID,Review,Rating\n" +
	"C1,Dirty car and late pickup,1\n" +
	"C2,Excellent service,5\n" +
	"C3,boom,N/A\n"

func TestCreateBatch_CSV(t *testing.T) {
	ts := newTestServer(t, 0)

	res, err := http.Post(ts.URL+"/v1/batches", "text/csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}
	loc := res.Header.Get("Location")
	b := decodeBatch(t, res)

	if loc != "/v1/batches/"+b.ID || b.Source != "csv" {
		t.Fatalf("unexpected location/source: %q %q", loc, b.Source)
	}
	if b.Total != 3 || b.Failed != 1 || len(b.Results) != 3 {
		t.Fatalf("unexpected totals: %+v", b)
	}
	if b.Summary.Total != 2 || b.Summary.SentimentCounts["negative"] != 1 || b.Summary.SentimentCounts["neutral"] != 0 {
		t.Fatalf("unexpected summary: %+v", b.Summary)
	}
	first := b.Results[0]
	if *first.CustomerID != "C1" || *first.Rating != 1 || first.Sentiment != "negative" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if len(first.Issues) != 2 || first.Issues[0] != "Cleanliness" || first.Issues[1] != "Delay" {
		t.Fatalf("unexpected issues: %v", first.Issues)
	}
	failed := b.Results[2]
	if !failed.Failed || failed.Sentiment != "" || failed.Rating != nil || !strings.Contains(failed.Failure, "provider down") {
		t.Fatalf("unexpected failed result: %+v", failed)
	}
	if b.Summary.TopIssues[0].Issue != "Cleanliness" && b.Summary.TopIssues[0].Issue != "Delay" {
		t.Fatalf("unexpected top issues: %+v", b.Summary.TopIssues)
	}
}

func TestCreateBatch_JSON(t *testing.T) {
	ts := newTestServer(t, 0)
	body := `{"reviews":[{"customer_id":7,"review":"Rude staff","rating":"2,5"},{"review":"Smooth"}]}`

	res, err := http.Post(ts.URL+"/v1/batches", "application/json; charset=utf-8", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}
	b := decodeBatch(t, res)
	if b.Source != "json" || len(b.Results) != 2 || *b.Results[0].CustomerID != "7" || *b.Results[0].Rating != 2.5 {
		t.Fatalf("unexpected batch: %+v", b)
	}
}

func TestCreateBatch_Multipart(t *testing.T) {
	ts := newTestServer(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "march.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte(sampleCSV))
	_ = mw.Close()

	res, err := http.Post(ts.URL+"/v1/batches", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if b := decodeBatch(t, res); b.Source != "march.csv" || b.Total != 3 {
		t.Fatalf("unexpected batch: %+v", b)
	}
}

func TestCreateBatch_InvalidInput(t *testing.T) {
	ts := newTestServer(t, 0)
	cases := map[string]string{
		"missing review column": "id,rating\n1,5\n",
		"bad rating":            "review,rating\nok,five\n",
		"ragged row":            "review,rating\nok,5,extra\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := http.Post(ts.URL+"/v1/batches", "text/csv", strings.NewReader(body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d", res.StatusCode)
			}
			if p := decodeProblem(t, res); p["title"] != "Invalid Input" {
				t.Fatalf("unexpected problem: %+v", p)
			}
		})
	}
}

func TestCreateBatch_TooLarge(t *testing.T) {
	ts := newTestServer(t, 64)
	body := "review\n" + strings.Repeat("a long review line that keeps going\n", 20)

	res, err := http.Post(ts.URL+"/v1/batches", "text/csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if res.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", res.StatusCode)
	}
	res.Body.Close()
}

func TestDemoBatchAndReads(t *testing.T) {
	ts := newTestServer(t, 0)

	res, err := http.Post(ts.URL+"/v1/batches/demo", "", nil)
	if err != nil {
		t.Fatalf("post demo: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}
	created := decodeBatch(t, res)
	if created.Source != "demo" || created.Total != 5 || created.Failed != 0 {
		t.Fatalf("unexpected demo batch: %+v", created)
	}
	base := ts.URL + "/v1/batches/" + created.ID

	// batch + conditional GET
	res, err = http.Get(base)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	etag := res.Header.Get("ETag")
	got := decodeBatch(t, res)
	if res.StatusCode != http.StatusOK || etag == "" || got.ID != created.ID {
		t.Fatalf("unexpected get: status=%d etag=%q", res.StatusCode, etag)
	}
	req, _ := http.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("If-None-Match", etag)
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res.StatusCode)
	}

	// summary
	res, err = http.Get(base + "/summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var sum struct {
		Total           int            `json:"total"`
		SentimentCounts map[string]int `json:"sentiment_counts"`
		IssueCounts     map[string]int `json:"issue_counts"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sum); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	res.Body.Close()
	if sum.Total != 5 || len(sum.IssueCounts) != len(domain.IssueCategories) || sum.IssueCounts["Staff Behavior"] != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	// report
	res, err = http.Get(base + "/report.docx")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var doc bytes.Buffer
	_, _ = doc.ReadFrom(res.Body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK || !strings.HasPrefix(res.Header.Get("Content-Type"), "application/vnd.openxmlformats") {
		t.Fatalf("unexpected report response: %d %q", res.StatusCode, res.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(doc.Bytes(), []byte("PK")) {
		t.Fatalf("report is not a zip container")
	}

	// charts
	res, err = http.Get(base + "/charts")
	if err != nil {
		t.Fatalf("charts: %v", err)
	}
	var page bytes.Buffer
	_, _ = page.ReadFrom(res.Body)
	res.Body.Close()
	if !strings.HasPrefix(res.Header.Get("Content-Type"), "text/html") || !strings.Contains(page.String(), "Sentiment Distribution") {
		t.Fatalf("unexpected charts page")
	}

	// list
	res, err = http.Get(ts.URL + "/v1/batches?limit=10")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list struct {
		Items []struct {
			ID    string `json:"id"`
			Total int    `json:"total"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	res.Body.Close()
	if len(list.Items) != 1 || list.Items[0].ID != created.ID || list.Items[0].Total != 5 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestReads_NotFoundAndBadLimit(t *testing.T) {
	ts := newTestServer(t, 0)

	for _, path := range []string{"/v1/batches/nope", "/v1/batches/nope/summary", "/v1/batches/nope/report.docx", "/v1/batches/nope/charts"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		if res.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, res.StatusCode)
		}
		decodeProblem(t, res)
	}

	res, err := http.Get(ts.URL + "/v1/batches?limit=0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", res.StatusCode)
	}
	res.Body.Close()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 0)
	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func slowUpload(n int) string {
	var sb strings.Builder
	sb.WriteString("Customer_ID,Review,Rating\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "C%d,review number %d,3\n", i, i)
	}
	return sb.String()
}

func TestCreateBatch_OutlivesRequestTimeout(t *testing.T) {
	repo := &memRepo{batches: map[string]domain.Batch{}}
	q := app.NewQueryService(repo, nil, time.Minute, report.NewExporter("Test Team"), charts.NewRenderer())
	a := app.NewAnalysisService(slowClassifier{delay: 30 * time.Millisecond}, repo, nil, time.Second, 1)

	s := httpserver.New(200 * time.Millisecond)
	s.MountHandlers(&httpserver.Handlers{Q: q, A: a})
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/v1/batches", "text/csv", strings.NewReader(slowUpload(20)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}
	b := decodeBatch(t, res)
	if b.Total != 20 || b.Failed != 0 {
		t.Fatalf("total=%d failed=%d, want 20/0", b.Total, b.Failed)
	}
	if _, err := repo.GetBatch(context.Background(), b.ID); err != nil {
		t.Fatalf("batch not stored: %v", err)
	}
}

func TestCreateBatch_DeadlineKeepsPartialBatch(t *testing.T) {
	repo := &memRepo{batches: map[string]domain.Batch{}}
	q := app.NewQueryService(repo, nil, time.Minute, report.NewExporter("Test Team"), charts.NewRenderer())
	a := app.NewAnalysisService(slowClassifier{delay: 30 * time.Millisecond}, repo, nil, time.Second, 1)

	s := httpserver.New(5 * time.Second)
	s.MountHandlers(&httpserver.Handlers{Q: q, A: a, BatchTimeout: 150 * time.Millisecond})
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/v1/batches", "text/csv", strings.NewReader(slowUpload(20)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}
	b := decodeBatch(t, res)
	if b.Total != 20 || b.Failed == 0 || b.Failed == 20 {
		t.Fatalf("expected a partial batch, total=%d failed=%d", b.Total, b.Failed)
	}
	stored, err := repo.GetBatch(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("partial batch not stored: %v", err)
	}
	if stored.FailedCount() != b.Failed {
		t.Fatalf("stored failed=%d, response failed=%d", stored.FailedCount(), b.Failed)
	}
}

func TestReads_StillBoundByRequestTimeout(t *testing.T) {
	s := httpserver.New(20 * time.Millisecond)
	s.Mount("/slow", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	ts := httptest.NewServer(s.Mux())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/slow")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.StatusCode)
	}
	if p := decodeProblem(t, res); p["title"] != "Timeout" {
		t.Fatalf("unexpected problem: %v", p)
	}
}
