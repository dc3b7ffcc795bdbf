package anthropicclf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"car_feedback/internal/adapters/observability"
	"car_feedback/internal/domain"
)

const systemPrompt = `You label car-rental customer feedback.
Reply with a single JSON object and nothing else:
{"label": "positive" | "negative" | "neutral", "confidence": <number between 0 and 1>}`

var ErrNoText = errors.New("anthropic: no text content in response")

// Classifier asks a Claude model for a sentiment label.
type Classifier struct {
	client anthropic.Client
	model  string
}

func New(apiKey, model string, opts ...option.RequestOption) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Classifier{client: anthropic.NewClient(opts...), model: model}, nil
}

func (c *Classifier) Name() string { return "anthropic" }

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Classification{}, domain.ErrEmptyText
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   64,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	observability.ObserveExternal("anthropic", "messages", statusOf(err), time.Since(start))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("anthropic messages: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return parseReply(block.Text)
		}
	}
	return domain.Classification{}, ErrNoText
}

type reply struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// parseReply reads the JSON object out of the model's text, tolerating surrounding prose.
func parseReply(s string) (domain.Classification, error) {
	i, j := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if i < 0 || j < i {
		return domain.Classification{}, fmt.Errorf("%w: %q", domain.ErrMalformedResponse, s)
	}
	var r reply
	if err := json.Unmarshal([]byte(s[i:j+1]), &r); err != nil {
		return domain.Classification{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	label, err := domain.ParseSentiment(r.Label)
	if err != nil {
		return domain.Classification{}, err
	}
	if r.Confidence == nil || math.IsNaN(*r.Confidence) || *r.Confidence < 0 || *r.Confidence > 1 {
		return domain.Classification{}, fmt.Errorf("%w: confidence", domain.ErrMalformedResponse)
	}

	conf := *r.Confidence
	score := 0.0
	switch label {
	case domain.SentimentPositive:
		score = conf
	case domain.SentimentNegative:
		score = -conf
	}
	return domain.Classification{Label: label, Confidence: conf, Score: score}, nil
}

func statusOf(err error) int {
	if err == nil {
		return 200
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
