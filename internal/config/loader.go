// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone so "today" and month lookups do not drift.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Scan environment for _FILE suffix variables and resolve them via the
//     SecretProvider, injecting the values back into the environment.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator, then the
//     cross-section rules validator tags cannot express.
package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// fileSuffix marks pointer variables. DATABASE_URL_FILE=/run/secrets/db
// resolves DATABASE_URL from the file's contents.
const fileSuffix = "_FILE"

type envLookup func(key string) (string, bool)

type envSet func(key, value string) error

type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the SkyRisk configuration. provider resolves
// *_FILE pointer variables; nil selects a FileSecretProvider.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv.Load does NOT override existing environment variables.
	_ = godotenv.Load()

	if provider == nil {
		provider = NewFileSecretProvider()
	}
	if err := resolveFileSecrets(provider, deps); err != nil {
		return nil, err
	}

	// The empty prefix means envconfig uses the exact tag values.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()
	if cfg.Upstream.UserAgent == "" {
		cfg.Upstream.UserAgent = cfg.Build.UserAgent()
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if err := validateCrossSection(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateCrossSection checks rules that span config sections.
func validateCrossSection(cfg *Config) error {
	if cfg.Climatology.Source == ClimatologyPostgres && cfg.Database.URL.Unmask() == "" {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "DATABASE_URL is required when CLIMATOLOGY_SOURCE=postgres",
		}
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.Database.MinConns, cfg.Database.MaxConns),
		}
	}
	return nil
}

// resolveFileSecrets scans the environment for variables ending in _FILE,
// reads the referenced secrets via the provider, and injects them back into
// the environment so that envconfig can process them.
//
// Only targets declared by Config are considered, and a target variable that
// is already set wins over its _FILE pointer.
func resolveFileSecrets(provider SecretProvider, deps loaderDeps) error {
	known := configKeys(reflect.TypeOf(Config{}), nil)
	pathToTarget := make(map[string]string)
	var paths []string

	for _, entry := range deps.environ() {
		eq := strings.IndexByte(entry, '=')
		if eq < 0 {
			continue
		}
		key := entry[:eq]
		if !strings.HasSuffix(key, fileSuffix) || key == fileSuffix {
			continue
		}

		target := strings.TrimSuffix(key, fileSuffix)
		if _, ok := known[target]; !ok {
			continue
		}
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}

		path := entry[eq+1:]
		if path == "" {
			continue
		}
		if _, dup := pathToTarget[path]; !dup {
			paths = append(paths, path)
		}
		pathToTarget[path] = target
	}

	if len(paths) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("failed to resolve %d secret files", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		target := pathToTarget[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := deps.setEnv(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSecretResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSecretResolution,
			Message: fmt.Sprintf("secret files not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// configKeys collects every envconfig tag reachable from t.
func configKeys(t reflect.Type, into map[string]struct{}) map[string]struct{} {
	if into == nil {
		into = make(map[string]struct{})
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag := f.Tag.Get("envconfig"); tag != "" {
			into[tag] = struct{}{}
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			configKeys(f.Type, into)
		}
	}
	return into
}
