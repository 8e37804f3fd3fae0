package roboflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xelth-com/eckplanogram/internal/detection"
)

// Config holds configuration for the hosted inference provider
type Config struct {
	URL     string // Model endpoint, e.g. https://detect.roboflow.com/shelf-products/3
	APIKey  string
	Timeout time.Duration
	Client  *http.Client // optional, mainly for tests
}

// Provider implements detection.ProviderInterface against a hosted
// object-detection endpoint that answers with a "predictions" array
type Provider struct {
	config Config
	client *http.Client
}

type inferenceResponse struct {
	Predictions []detection.Prediction `json:"predictions"`
	Image       struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"image"`
	Error string `json:"error,omitempty"`
}

// NewProvider creates a new hosted inference provider
func NewProvider(config Config) (*Provider, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("inference URL is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Provider{config: config, client: client}, nil
}

// Code returns the provider code
func (p *Provider) Code() string {
	return "roboflow"
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "Roboflow Hosted Inference"
}

// Detect posts the base64 encoded image and decodes the predictions
func (p *Provider) Detect(ctx context.Context, img detection.Image) (*detection.Result, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	endpoint, err := url.Parse(p.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid inference URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("api_key", p.config.APIKey)
	endpoint.RawQuery = q.Encode()

	body := base64.StdEncoding.EncodeToString(img.Data)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("inference error: %s", parsed.Error)
	}
	if parsed.Predictions == nil {
		return nil, detection.ErrEmptyResult
	}

	return &detection.Result{
		Provider:    p.Code(),
		Predictions: parsed.Predictions,
		ImageWidth:  parsed.Image.Width,
		ImageHeight: parsed.Image.Height,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
