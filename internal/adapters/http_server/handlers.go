// internal/adapters/http_server/handlers.go
package httpserver

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"car_feedback/internal/app"
	"car_feedback/internal/domain"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type Handlers struct {
	Q            *app.QueryService
	A            *app.AnalysisService
	MaxUpload    int64         // bytes; 0 means 10 MiB
	BatchTimeout time.Duration // analysis deadline per upload; 0 means 10 minutes
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(s.timeout))
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
		r.Get("/v1/batches", h.listBatches)
		r.Get("/v1/batches/{id}", h.getBatch)
		r.Get("/v1/batches/{id}/summary", h.getSummary)
		r.Get("/v1/batches/{id}/report.docx", h.getReport)
		r.Get("/v1/batches/{id}/charts", h.getCharts)
	})
	// uploads are bounded by BatchTimeout inside run, not by the request timeout
	s.mux.Post("/v1/batches", h.createBatch)
	s.mux.Post("/v1/batches/demo", h.createDemoBatch)
}

// ---- DTOs ----

type resultDTO struct {
	CustomerID *string  `json:"customer_id"`
	Review     string   `json:"review"`
	Rating     *float64 `json:"rating"`
	Sentiment  string   `json:"sentiment,omitempty"`
	Confidence float64  `json:"confidence"`
	Score      float64  `json:"score"`
	Issues     []string `json:"issues"`
	Failed     bool     `json:"failed"`
	Failure    string   `json:"failure,omitempty"`
}

type issueCountDTO struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

type summaryDTO struct {
	Total           int             `json:"total"`
	SentimentCounts map[string]int  `json:"sentiment_counts"`
	IssueCounts     map[string]int  `json:"issue_counts"`
	TopIssues       []issueCountDTO `json:"top_issues"`
}

type batchInfoDTO struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Total     int       `json:"total"`
	Failed    int       `json:"failed"`
}

type batchDTO struct {
	batchInfoDTO
	Summary summaryDTO  `json:"summary"`
	Results []resultDTO `json:"results"`
}

func toSummaryDTO(s domain.BatchSummary) summaryDTO {
	out := summaryDTO{
		Total:           s.Total(),
		SentimentCounts: make(map[string]int, len(s.SentimentCounts)),
		IssueCounts:     make(map[string]int, len(s.IssueCounts)),
		TopIssues:       []issueCountDTO{},
	}
	for k, v := range s.SentimentCounts {
		out.SentimentCounts[string(k)] = v
	}
	for k, v := range s.IssueCounts {
		out.IssueCounts[string(k)] = v
	}
	for _, ic := range s.RankedIssues() {
		out.TopIssues = append(out.TopIssues, issueCountDTO{Issue: string(ic.Issue), Count: ic.Count})
	}
	return out
}

func toInfoDTO(bi domain.BatchInfo) batchInfoDTO {
	return batchInfoDTO{ID: bi.ID, Source: bi.Source, CreatedAt: bi.CreatedAt, Total: bi.Total, Failed: bi.Failed}
}

func toBatchDTO(b domain.Batch) batchDTO {
	out := batchDTO{
		batchInfoDTO: toInfoDTO(b.Info()),
		Summary:      toSummaryDTO(b.Summary),
		Results:      make([]resultDTO, len(b.Results)),
	}
	for i, r := range b.Results {
		issues := make([]string, len(r.Issues))
		for j, is := range r.Issues {
			issues[j] = string(is)
		}
		out.Results[i] = resultDTO{
			CustomerID: r.Review.CustomerID,
			Review:     r.Review.Text,
			Rating:     r.Review.Rating,
			Sentiment:  string(r.Sentiment),
			Confidence: r.Confidence,
			Score:      r.Score,
			Issues:     issues,
			Failed:     r.Failed(),
			Failure:    r.Failure,
		}
	}
	return out
}

// ---- helpers ----

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var inErr *domain.InputError
	var exErr *domain.ExportError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		writeProblem(w, http.StatusRequestEntityTooLarge, "Upload Too Large",
			"upload exceeds "+strconv.FormatInt(tooBig.Limit, 10)+" bytes")
	case errors.As(err, &inErr):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", inErr.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "batch not found")
	case errors.As(err, &exErr):
		log.Error().Err(err).Msg("export failed")
		writeProblem(w, http.StatusInternalServerError, "Export Failed", exErr.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON answers with an ETag and short-circuits on a matching If-None-Match.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- upload ----

// readUpload decodes the request body into reviews. It accepts text/csv,
// application/json, or a multipart form with a "file" part (".json" files are JSON).
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (string, []domain.Review, error) {
	limit := h.MaxUpload
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mt = "text/csv"
	}
	switch mt {
	case "application/json":
		reviews, err := app.LoadJSON(r.Body)
		return "json", reviews, err
	case "multipart/form-data":
		if err := r.ParseMultipartForm(limit); err != nil {
			if errors.As(err, new(*http.MaxBytesError)) {
				return "", nil, err
			}
			return "", nil, &domain.InputError{Reason: "unreadable multipart form", Err: err}
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			return "", nil, &domain.InputError{Reason: `missing "file" part`, Err: err}
		}
		defer f.Close()
		name := filepath.Base(fh.Filename)
		if strings.EqualFold(filepath.Ext(name), ".json") {
			reviews, err := app.LoadJSON(f)
			return name, reviews, err
		}
		reviews, err := app.LoadCSV(f)
		return name, reviews, err
	default:
		reviews, err := app.LoadCSV(r.Body)
		return "csv", reviews, err
	}
}

func (h *Handlers) createBatch(w http.ResponseWriter, r *http.Request) {
	source, reviews, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.run(w, r, source, reviews)
}

func (h *Handlers) createDemoBatch(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "demo", app.DemoReviews())
}

// run analyzes on a context detached from the client connection so a dropped client
// does not discard the batch. Reviews still pending at the deadline are marked failed.
func (h *Handlers) run(w http.ResponseWriter, r *http.Request, source string, reviews []domain.Review) {
	limit := h.BatchTimeout
	if limit <= 0 {
		limit = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), limit)
	defer cancel()

	b, err := h.A.RunBatch(ctx, source, reviews)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/batches/"+b.ID)
	writeJSON(w, r, http.StatusCreated, toBatchDTO(b))
}

// ---- reads ----

func (h *Handlers) listBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	// Newest first; aligns with the created_at index
	infos, err := h.Q.ListBatches(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]batchInfoDTO, len(infos))
	for i, bi := range infos {
		out[i] = toInfoDTO(bi)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) getBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.Q.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toBatchDTO(b))
}

func (h *Handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Q.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSummaryDTO(s))
}

// getReport renders into memory first so export failures can still be reported as problems.
func (h *Handlers) getReport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.Q.WriteReport(r.Context(), chi.URLParam(r, "id"), &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="car_review_report.docx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := io.Copy(w, &buf); err != nil {
		log.Error().Err(err).Msg("failed to write report body")
	}
}

func (h *Handlers) getCharts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.Q.WriteCharts(r.Context(), chi.URLParam(r, "id"), &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.Copy(w, &buf); err != nil {
		log.Error().Err(err).Msg("failed to write charts body")
	}
}
