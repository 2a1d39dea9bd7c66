// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle asks extraction questions about a document to a language
// model and decodes the structured answers.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/ontoguide/pkg/types"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call.
type Request struct {
	Model    string
	System   string
	Messages []Message
	// Schema is the JSON schema the answer must follow.
	Schema json.RawMessage
}

// Backend abstracts the model API so tests can supply a mock.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrOracle is matched by every Error.
var ErrOracle = errors.New("oracle failure")

// Error reports a transport or model failure that survived every retry.
type Error struct {
	Model    string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle %s failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrOracle) hold for any *Error.
func (e *Error) Is(target error) bool { return target == ErrOracle }

// NewBackend returns the backend selected by cfg.Backend.
func NewBackend(cfg types.OracleConfig) (Backend, error) {
	switch cfg.Backend {
	case types.BackendOpenRouter, "":
		return NewOpenRouterBackend(cfg)
	case types.BackendClaude:
		return NewClaudeBackend(cfg)
	default:
		return nil, errors.Newf("unsupported oracle backend %q: use openrouter or claude", cfg.Backend)
	}
}

// schemaValue decodes a raw schema for SDKs that take a Go value.
func schemaValue(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "decoding answer schema")
	}
	return v, nil
}
