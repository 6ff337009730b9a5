package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// GroqOptions configures the chat completions client.
type GroqOptions struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
	Footer   string
}

// GroqClient rewrites feed items through an OpenAI compatible chat API.
type GroqClient struct {
	client       *resty.Client
	apiKey       string
	model        string
	endpoint     string
	systemPrompt string
	post         *PostProcessor
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewGroqClient(opts GroqOptions) *GroqClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &GroqClient{
		client:       resty.New().SetTimeout(opts.Timeout),
		apiKey:       opts.APIKey,
		model:        opts.Model,
		endpoint:     opts.Endpoint,
		systemPrompt: BuildSystemPrompt(opts.Footer),
		post:         NewPostProcessor(),
	}
}

// Rewrite turns a feed item into a formatted post body.
func (g *GroqClient) Rewrite(ctx context.Context, title, description string) (string, error) {
	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: g.systemPrompt},
			{Role: "user", Content: BuildUserPrompt(title, description)},
		},
		Temperature: 0.5,
		MaxTokens:   1000,
		TopP:        0.9,
	}

	var result chatResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post(g.endpoint)

	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode(), result.Error.Message)
	}

	if resp.IsError() {
		return "", fmt.Errorf("API error: status %d", resp.StatusCode())
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("no content in response")
	}

	return g.post.Process(result.Choices[0].Message.Content)
}
