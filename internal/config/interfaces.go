package config

import "context"

// SecretProvider abstracts the retrieval of secrets referenced by *_FILE
// variables so the loader can be tested without touching the filesystem.
type SecretProvider interface {
	// GetParametersBatch resolves each key and returns key -> plaintext for
	// every key it could resolve. Missing keys are omitted, not errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
