// Package gemini wraps the Google GenAI SDK for the three remote steps:
// visual extraction from a PDF, chunked text analysis, and batched tagging.
package gemini

import (
	"context"
	"errors"
	"strings"

	genai "google.golang.org/genai"

	"github.com/ankitagger/ankitagger/pkg/logger"
)

type Client struct {
	genai  *genai.Client
	logger *logger.Logger
}

func NewClient(ctx context.Context, apiKey string, log *logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing Gemini API key (set GEMINI_API_KEY or gemini.api_key)")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &Client{genai: c, logger: log}, nil
}

// generateText sends one text-only request and returns the reply body.
func (c *Client) generateText(ctx context.Context, model, prompt string) (string, error) {
	res, err := c.genai.Models.GenerateContent(ctx, model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, nil)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// generateJSON sends one request with an application/json response MIME so
// the model replies with parseable JSON instead of prose.
func (c *Client) generateJSON(ctx context.Context, model string, contents []*genai.Content) (string, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	res, err := c.genai.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// IsRecoverable reports whether an API error is worth skipping a unit for
// (quota, throttling) rather than aborting the run (auth, bad model).
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "quota", "resource_exhausted", "429", "unavailable", "503", "deadline"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
