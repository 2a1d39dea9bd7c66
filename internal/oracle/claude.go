// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"

	"github.com/pdiddy/ontoguide/pkg/types"
)

const defaultMaxTokens = 1024

// ClaudeBackend calls the Anthropic Messages API. The API has no response
// format parameter, so the schema is appended to the system prompt.
type ClaudeBackend struct {
	client    anthropic.Client
	maxTokens int64
}

// NewClaudeBackend returns a backend for cfg.
func NewClaudeBackend(cfg types.OracleConfig) (*ClaudeBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("claude: API key required (set --api-key, oracle.api_key, or .secrets/anthropic-api-key)")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ClaudeBackend{
		client:    anthropic.NewClient(opts...),
		maxTokens: int64(maxTokens),
	}, nil
}

func (b *ClaudeBackend) Complete(ctx context.Context, req Request) (string, error) {
	system := req.System
	if len(req.Schema) > 0 {
		system += "\n\nRespond only with a JSON object that follows this JSON schema:\n" + string(req.Schema)
	}

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   b.maxTokens,
		Messages:    msgs,
		Temperature: anthropic.Float(0),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.Wrapf(err, "messages (%s)", req.Model)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
