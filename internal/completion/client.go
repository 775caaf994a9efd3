// ABOUTME: Remote completion client for the OpenAI-compatible hosted model API
// ABOUTME: Maps model variant codes to backend models and prepends the system instruction

package completion

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/praxyhealth/praxy-gateway/internal/config"
	"github.com/praxyhealth/praxy-gateway/internal/conversation"
)

// Client invokes the hosted completion endpoint. The endpoint is treated as
// an opaque remote call: errors and timeouts propagate to the caller, and
// nothing is retried here.
type Client struct {
	api            *openai.Client
	models         map[string]string
	defaultVariant string
	systemPrompt   string
	logger         *slog.Logger
}

// New creates a completion client from the completion section of the config.
func New(cfg config.CompletionConfig, models map[string]string, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("completion.api_key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		models:         models,
		defaultVariant: cfg.DefaultVariant,
		systemPrompt:   cfg.SystemPrompt,
		logger:         logger.With("component", "completion"),
	}, nil
}

// ModelFor resolves a variant code to the backend model that serves it.
// Unknown codes fall back to the default variant's model.
func (c *Client) ModelFor(variant string) string {
	if name, ok := c.models[variant]; ok {
		return name
	}
	return c.models[c.defaultVariant]
}

// Complete sends the conversation to the remote endpoint and returns the
// assistant reply text. The fixed system instruction is prepended here; it
// is never part of the persisted history.
func (c *Client) Complete(ctx context.Context, modelVariant string, msgs []conversation.Message) (string, error) {
	model := c.ModelFor(modelVariant)

	outbound := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if c.systemPrompt != "" {
		outbound = append(outbound, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}
	for _, m := range msgs {
		outbound = append(outbound, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	c.logger.Debug("requesting completion",
		"model", model,
		"variant", modelVariant,
		"messages", len(outbound),
	)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: outbound,
	})
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion response contained no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
