// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/ontoguide/pkg/types"
)

// SystemPrompt frames every question. The document text follows it.
const SystemPrompt = "You are a legal analysis assistant. Be concrete and concise when naming entities. " +
	"Extract information from the following document:\n\n%s"

const defaultMaxRetries = 3

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Conversation is the oracle for one document: the document is the
// system context and, when history is kept, every answered question is
// replayed with the next one. It is safe for concurrent use; questions
// are serialized.
type Conversation struct {
	backend     Backend
	system      string
	maxRetries  int
	keepHistory bool
	limiter     *rate.Limiter
	log         *zap.SugaredLogger

	mu      sync.Mutex
	history []Message
	calls   int
}

// NewConversation returns an oracle over document. A nil logger disables
// logging.
func NewConversation(backend Backend, document string, cfg types.OracleConfig, logger *zap.SugaredLogger) *Conversation {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Conversation{
		backend:     backend,
		system:      fmt.Sprintf(SystemPrompt, document),
		maxRetries:  maxRetries,
		keepHistory: cfg.KeepHistory,
		log:         logger,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Ask sends prompt to model and returns the raw answer text. Failures
// that outlast every retry are returned as *Error.
func (c *Conversation) Ask(ctx context.Context, prompt, model string, schema json.RawMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]Message, 0, len(c.history)+1)
	msgs = append(msgs, c.history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})
	req := Request{Model: model, System: c.system, Messages: msgs, Schema: schema}

	start := time.Now()
	answer, attempts, err := c.callWithRetry(ctx, req)
	c.calls += attempts
	if err != nil {
		c.log.Warnw("oracle call failed", "model", model, "attempts", attempts, "error", err)
		return "", &Error{Model: model, Attempts: attempts, Err: err}
	}
	c.log.Debugw("oracle answered", "model", model, "elapsed", time.Since(start), "prompt", prompt, "answer", answer)

	if c.keepHistory {
		c.history = append(c.history,
			Message{Role: RoleUser, Content: prompt},
			Message{Role: RoleAssistant, Content: answer})
	}
	return answer, nil
}

// Calls returns the number of backend calls made, retries included.
func (c *Conversation) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// callWithRetry calls the backend with exponential backoff.
func (c *Conversation) callWithRetry(ctx context.Context, req Request) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return "", attempt, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", attempt, errors.Wrap(err, "waiting for rate limiter")
			}
		}

		answer, err := c.backend.Complete(ctx, req)
		if err == nil {
			return answer, attempt + 1, nil
		}
		lastErr = err
	}
	return "", c.maxRetries + 1, errors.Wrapf(lastErr, "after %d retries", c.maxRetries)
}
