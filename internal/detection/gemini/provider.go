package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xelth-com/eckplanogram/internal/ai"
	"github.com/xelth-com/eckplanogram/internal/detection"
	"github.com/xelth-com/eckplanogram/internal/utils"
)

// ImageDescriber is the part of ai.GeminiClient the provider needs
type ImageDescriber interface {
	DescribeImage(ctx context.Context, mimeType string, data []byte, prompt string) (string, error)
	ModelName() string
}

// Provider implements detection.ProviderInterface with a multimodal LLM
type Provider struct {
	client ImageDescriber
}

// NewProvider creates a new Gemini-backed detection provider
func NewProvider(client ImageDescriber) (*Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini client is required")
	}
	return &Provider{client: client}, nil
}

var _ ImageDescriber = (*ai.GeminiClient)(nil)

// Code returns the provider code
func (p *Provider) Code() string {
	return "gemini"
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "Google Gemini Vision"
}

type geminiAnswer struct {
	Predictions []detection.Prediction `json:"predictions"`
}

// Detect asks the model for visible facings and parses its JSON answer
func (p *Provider) Detect(ctx context.Context, img detection.Image) (*detection.Result, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	// Expected names go into the prompt so labels line up with catalog names
	known := "(none)"
	if len(img.Hints) > 0 {
		known = strings.Join(img.Hints, ", ")
	}
	prompt := fmt.Sprintf(ai.ShelfDetectionPrompt, known)

	text, err := p.client.DescribeImage(ctx, img.MimeType, img.Data, prompt)
	if err != nil {
		return nil, err
	}

	var answer geminiAnswer
	if err := json.Unmarshal([]byte(utils.SanitizeJSON(text)), &answer); err != nil {
		return nil, fmt.Errorf("failed to parse gemini answer: %w", err)
	}
	if answer.Predictions == nil {
		return nil, detection.ErrEmptyResult
	}

	preds := answer.Predictions[:0]
	for _, pr := range answer.Predictions {
		pr.Class = strings.TrimSpace(pr.Class)
		if pr.Class == "" {
			continue
		}
		if pr.Confidence <= 0 || pr.Confidence > 1 {
			pr.Confidence = 1
		}
		preds = append(preds, pr)
	}

	return &detection.Result{
		Provider:    p.Code(),
		Model:       p.client.ModelName(),
		Predictions: preds,
	}, nil
}
