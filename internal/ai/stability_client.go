package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// StabilityOptions configures the text-to-image client.
type StabilityOptions struct {
	APIKey  string
	Host    string
	Engine  string
	Timeout time.Duration
}

// StabilityClient generates illustrations with the Stability REST API.
type StabilityClient struct {
	client *resty.Client
	apiKey string
	url    string
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type textToImageRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    float64      `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
	StylePreset string       `json:"style_preset"`
}

type textToImageResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
	Message string `json:"message"`
}

func NewStabilityClient(opts StabilityOptions) *StabilityClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &StabilityClient{
		client: resty.New().SetTimeout(opts.Timeout),
		apiKey: opts.APIKey,
		url:    fmt.Sprintf("%s/v1/generation/%s/text-to-image", strings.TrimRight(opts.Host, "/"), opts.Engine),
	}
}

// Generate returns PNG bytes for prompt. A response without a usable image
// yields nil bytes and no error.
func (s *StabilityClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("empty image prompt")
	}

	req := textToImageRequest{
		TextPrompts: []textPrompt{{Text: prompt, Weight: 1}},
		CfgScale:    7,
		Height:      1024,
		Width:       1024,
		Samples:     1,
		Steps:       30,
		StylePreset: "digital-art",
	}

	var result textToImageResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetHeader("Accept", "application/json").
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post(s.url)

	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}

	if resp.IsError() {
		msg := result.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode(), msg)
	}

	for _, a := range result.Artifacts {
		if a.Base64 == "" || a.FinishReason == "CONTENT_FILTERED" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(a.Base64)
		if err != nil {
			return nil, fmt.Errorf("decode artifact: %w", err)
		}
		return data, nil
	}

	return nil, nil
}
