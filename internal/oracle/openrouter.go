// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/ontoguide/pkg/types"
)

// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterBackend calls any OpenAI-compatible chat completions API and
// requests strict JSON-schema output.
type OpenRouterBackend struct {
	client openai.Client
}

// NewOpenRouterBackend returns a backend for cfg. Retries are left to the
// Conversation, so the SDK's own retries are disabled.
func NewOpenRouterBackend(cfg types.OracleConfig) (*OpenRouterBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: API key required (set --api-key, oracle.api_key, or .secrets/openrouter-api-key)")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &OpenRouterBackend{client: client}, nil
}

func (b *OpenRouterBackend) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		Temperature: openai.Float(0),
		TopP:        openai.Float(1),
	}

	schema, err := schemaValue(req.Schema)
	if err != nil {
		return "", err
	}
	if schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "structured_response",
					Strict: openai.Bool(true),
					Schema: schema,
				},
			},
		}
	}

	chat, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrapf(err, "chat completion (%s)", req.Model)
	}
	if len(chat.Choices) == 0 {
		return "", errors.Newf("chat completion (%s): no choices returned", req.Model)
	}
	return chat.Choices[0].Message.Content, nil
}
