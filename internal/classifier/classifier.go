// Package classifier turns text into a sentiment score in [-1, 1].
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/straja-ai/textpulse/internal/config"
)

// Classifier scores text. Negative scores are negative sentiment.
type Classifier interface {
	Score(ctx context.Context, text string) (float64, error)
	Name() string
}

// New builds the classifier selected by cfg.Classifier.
func New(ctx context.Context, cfg config.AnalyzerConfig) (Classifier, error) {
	switch cfg.Classifier {
	case "", "lexicon":
		return NewLexicon(), nil
	case "onnx":
		return LoadONNX(cfg.ONNX.ModelDir, cfg.ONNX.SeqLen)
	case "cloudnl":
		return NewCloudNL(ctx, cfg.CloudNLCredentials)
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, errors.New("classifier openai: OPENAI_API_KEY is required")
		}
		return NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil
	default:
		return nil, fmt.Errorf("classifier: unknown backend %q", cfg.Classifier)
	}
}

// Close releases resources held by c, if any.
func Close(c Classifier) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func clamp(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(-1, math.Min(1, s))
}
