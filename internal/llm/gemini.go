// Package llm adapts the remote text generator used for intent
// classification and reply phrasing.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyReply is returned when the model produced no text.
var ErrEmptyReply = errors.New("remote generator returned empty text")

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	JSON        bool // ask for an application/json reply
	Temperature float32
	MaxTokens   int32
}

// Generator produces text with one of a pool of credentials.
type Generator interface {
	Generate(ctx context.Context, credential int, req Request) (string, error)
	Credentials() int
}

// GeminiClient calls the Gemini API with one client per API key so a
// quota-exhausted key can be swapped for the next.
type GeminiClient struct {
	clients []*genai.Client
	model   string
}

// NewGeminiClient creates a client for each key.
func NewGeminiClient(ctx context.Context, apiKeys []string, model string) (*GeminiClient, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("at least one Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	clients := make([]*genai.Client, 0, len(apiKeys))
	for i, key := range apiKeys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client %d: %w", i, err)
		}
		clients = append(clients, client)
	}

	return &GeminiClient{clients: clients, model: model}, nil
}

// Credentials returns the number of API keys in the pool.
func (g *GeminiClient) Credentials() int {
	return len(g.clients)
}

// Generate implements Generator.
func (g *GeminiClient) Generate(ctx context.Context, credential int, req Request) (string, error) {
	client := g.clients[credential%len(g.clients)]

	temp := req.Temperature
	if temp == 0 {
		temp = 0.7
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	res, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// StripCodeFence removes a surrounding markdown code fence, which models
// sometimes add around JSON replies.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop an info string such as "json".
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
