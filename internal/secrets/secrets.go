// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads oracle API keys from a directory of plain-text
// files. Each file is one secret: the filename is the key name and the
// trimmed contents are the value.
//
// Recognized key files: openrouter-api-key, anthropic-api-key.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/ontoguide/pkg/types"
)

const (
	OpenRouterKey = "openrouter-api-key"
	AnthropicKey  = "anthropic-api-key"
)

// envFallback maps each key file to the environment variable consulted
// when the file is absent.
var envFallback = map[string]string{
	OpenRouterKey: "OPENROUTER_API_KEY",
	AnthropicKey:  "ANTHROPIC_API_KEY",
}

// Load reads every file in dir. A missing directory yields an empty map.
// Unreadable files are logged and skipped. A nil logger disables logging.
func Load(dir string, logger *zap.SugaredLogger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "reading secrets directory %s", dir)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warnw("skipping unreadable secret", "key", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// KeyFor returns the key file name used by backend.
func KeyFor(backend types.OracleBackend) string {
	if backend == types.BackendClaude {
		return AnthropicKey
	}
	return OpenRouterKey
}

// Resolve returns explicit when set, then the loaded secret for key, then
// the key's environment variable.
func Resolve(secrets map[string]string, key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v, ok := secrets[key]; ok {
		return v
	}
	if env, ok := envFallback[key]; ok {
		return os.Getenv(env)
	}
	return ""
}
