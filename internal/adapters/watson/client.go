// internal/adapters/watson/client.go
package watson

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"car_feedback/internal/adapters/observability"
	"car_feedback/internal/domain"
)

const DefaultVersion = "2022-04-07"

// Client talks to IBM Watson Natural Language Understanding.
type Client struct {
	base    string
	key     string
	version string
	hc      *http.Client
	rl      *rate.Limiter
}

// New builds a client for the instance URL base. timeout bounds each HTTP attempt.
func New(base, key, version string, rps int, timeout time.Duration) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if base == "" {
		return nil, fmt.Errorf("service URL is required")
	}
	if version == "" {
		version = DefaultVersion
	}
	if rps <= 0 {
		rps = 5
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		key:     key,
		version: version,
		hc:      &http.Client{Timeout: timeout},
		rl:      rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (c *Client) Name() string { return "watson" }

// ---- Public API ----

type analyzeRequest struct {
	Text     string   `json:"text"`
	Features features `json:"features"`
}

type features struct {
	Sentiment struct{} `json:"sentiment"`
}

type analyzeResponse struct {
	Language  string `json:"language"`
	Sentiment *struct {
		Document *struct {
			Label string   `json:"label"`
			Score *float64 `json:"score"`
		} `json:"document"`
	} `json:"sentiment"`
}

// Classify runs document-level sentiment on text. Watson scores are -1..1;
// confidence is the score's magnitude.
func (c *Client) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Classification{}, domain.ErrEmptyText
	}
	var out analyzeResponse
	if err := c.post(ctx, "analyze", analyzeRequest{Text: text}, &out); err != nil {
		return domain.Classification{}, err
	}
	return toClassification(out)
}

func toClassification(out analyzeResponse) (domain.Classification, error) {
	if out.Sentiment == nil || out.Sentiment.Document == nil || out.Sentiment.Document.Score == nil {
		return domain.Classification{}, fmt.Errorf("%w: no document sentiment", domain.ErrMalformedResponse)
	}
	doc := out.Sentiment.Document
	label, err := domain.ParseSentiment(doc.Label)
	if err != nil {
		return domain.Classification{}, err
	}
	score := *doc.Score
	if math.IsNaN(score) || score < -1 || score > 1 {
		return domain.Classification{}, fmt.Errorf("%w: score %v", domain.ErrMalformedResponse, score)
	}
	return domain.Classification{Label: label, Confidence: math.Abs(score), Score: score}, nil
}

// ---- Internals ----

var (
	ErrNotFound        = errors.New("watson: not found")
	ErrUnauthorized    = errors.New("watson: unauthorized")
	ErrForbidden       = errors.New("watson: forbidden")
	ErrUnsupportedText = errors.New("watson: unsupported text")
)

// post sends a JSON body with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429, transient 5xx and network errors, honoring Retry-After when provided.
func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/%s?version=%s", c.base, endpoint, c.version)

	// client-side rate limiting
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		// build a fresh request each attempt
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.SetBasicAuth("apikey", c.key)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "car-feedback/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("watson", endpoint, 0, time.Since(start))
			// network error or context canceled
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			// context-aware sleep before retry
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("watson", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
			}
			return nil

		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			// too short, unsupported language, etc. Retrying will not help.
			msg := errorMessage(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("%w: %s", ErrUnsupportedText, msg)

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Prefer server-provided Retry-After; otherwise exponential backoff.
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			msg := errorMessage(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, msg)
		}
	}

	return lastErr
}

// errorMessage pulls "error" out of a Watson error body, else returns the trimmed body.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(b))
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns 200ms, 400ms, 800ms... for attempt i, plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
