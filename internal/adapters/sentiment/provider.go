package sentiment

import (
	"fmt"

	anthropicclf "car_feedback/internal/adapters/anthropic"
	"car_feedback/internal/adapters/watson"
	"car_feedback/internal/domain"
	"car_feedback/internal/shared"
)

// New returns the classifier selected by SENTIMENT_PROVIDER.
func New(cfg shared.Config) (domain.SentimentClassifier, error) {
	switch cfg.SentimentProvider {
	case "watson":
		c, err := watson.New(cfg.WatsonURL, cfg.WatsonKey, cfg.WatsonVersion, cfg.ClassifyRPS, cfg.ClassifyTimeoutDuration())
		if err != nil {
			return nil, fmt.Errorf("watson: %w", err)
		}
		return c, nil
	case "anthropic":
		c, err := anthropicclf.New(cfg.AnthropicKey, cfg.AnthropicModel)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown sentiment provider %q", cfg.SentimentProvider)
	}
}
