package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileSecretProvider implements SecretProvider by reading mounted secret
// files (Docker secrets, Kubernetes secret volumes). Trailing newlines are
// trimmed.
type FileSecretProvider struct {
	readFile func(name string) ([]byte, error)
}

// NewFileSecretProvider creates a FileSecretProvider backed by os.ReadFile.
func NewFileSecretProvider() *FileSecretProvider {
	return &FileSecretProvider{readFile: os.ReadFile}
}

// GetParametersBatch reads each path. Nonexistent files are omitted from the
// result; any other read error aborts the batch.
func (p *FileSecretProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := p.readFile(key)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		result[key] = strings.TrimRight(string(data), "\r\n")
	}
	return result, nil
}
