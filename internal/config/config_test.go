package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestSecretStringAlias verifies the config alias shares redaction behaviour
// with types.SecretString.
func TestSecretStringAlias(t *testing.T) {
	s := SecretString("postgres://u:p@h/db")

	if s.String() != "***REDACTED***" {
		t.Errorf("String() = %q, want redacted", s.String())
	}
	if got := fmt.Sprintf("%v", s); strings.Contains(got, "postgres") {
		t.Errorf("fmt %%v leaked the secret: %q", got)
	}
	if s.Unmask() != "postgres://u:p@h/db" {
		t.Errorf("Unmask() = %q", s.Unmask())
	}
}

// TestEnvconfigTags pins the public environment variable names.
func TestEnvconfigTags(t *testing.T) {
	tests := []struct {
		structType reflect.Type
		fieldName  string
		want       string
	}{
		{reflect.TypeOf(Config{}), "Environment", "APP_ENV"},
		{reflect.TypeOf(Config{}), "LogLevel", "LOG_LEVEL"},
		{reflect.TypeOf(ServerConfig{}), "Port", "PORT"},
		{reflect.TypeOf(ServerConfig{}), "RateLimitRPS", "API_RATE_LIMIT_RPS"},
		{reflect.TypeOf(UpstreamConfig{}), "ForecastURL", "OPENMETEO_FORECAST_URL"},
		{reflect.TypeOf(UpstreamConfig{}), "GeocodingURL", "OPENMETEO_GEOCODING_URL"},
		{reflect.TypeOf(UpstreamConfig{}), "Timeout", "UPSTREAM_TIMEOUT"},
		{reflect.TypeOf(UpstreamConfig{}), "RPS", "UPSTREAM_RPS"},
		{reflect.TypeOf(UpstreamConfig{}), "Burst", "UPSTREAM_BURST"},
		{reflect.TypeOf(UpstreamConfig{}), "CacheTTL", "FORECAST_CACHE_TTL"},
		{reflect.TypeOf(SessionConfig{}), "TTL", "SESSION_TTL"},
		{reflect.TypeOf(ClimatologyConfig{}), "Source", "CLIMATOLOGY_SOURCE"},
		{reflect.TypeOf(DatabaseConfig{}), "URL", "DATABASE_URL"},
		{reflect.TypeOf(DatabaseConfig{}), "MaxConns", "DB_MAX_CONNS"},
		{reflect.TypeOf(RiskConfig{}), "HotC", "RISK_HOT_C"},
		{reflect.TypeOf(RiskConfig{}), "ColdC", "RISK_COLD_C"},
		{reflect.TypeOf(RiskConfig{}), "WetMM", "RISK_WET_MM"},
		{reflect.TypeOf(RiskConfig{}), "WindyKmh", "RISK_WINDY_KMH"},
		{reflect.TypeOf(AWSConfig{}), "Region", "AWS_REGION"},
		{reflect.TypeOf(AWSConfig{}), "EndpointURL", "AWS_ENDPOINT_URL"},
		{reflect.TypeOf(SecurityConfig{}), "CorsAllowedOrigins", "CORS_ALLOWED_ORIGINS"},
		{reflect.TypeOf(ObservabilityConfig{}), "MetricsEnabled", "METRICS_ENABLED"},
		{reflect.TypeOf(ObservabilityConfig{}), "MetricNamespace", "METRIC_NAMESPACE"},
		{reflect.TypeOf(ObservabilityConfig{}), "MetricsFlushInterval", "METRICS_FLUSH_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.structType.Name()+"."+tt.fieldName, func(t *testing.T) {
			f, ok := tt.structType.FieldByName(tt.fieldName)
			if !ok {
				t.Fatalf("field %s not found", tt.fieldName)
			}
			if got := f.Tag.Get("envconfig"); got != tt.want {
				t.Errorf("envconfig tag = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDurationFieldTypes guards against accidentally declaring durations as
// strings, which envconfig would happily accept.
func TestDurationFieldTypes(t *testing.T) {
	durType := reflect.TypeOf(time.Duration(0))
	fields := []struct {
		typ  reflect.Type
		name string
	}{
		{reflect.TypeOf(ServerConfig{}), "RequestTimeout"},
		{reflect.TypeOf(UpstreamConfig{}), "Timeout"},
		{reflect.TypeOf(UpstreamConfig{}), "CacheTTL"},
		{reflect.TypeOf(SessionConfig{}), "TTL"},
		{reflect.TypeOf(SessionConfig{}), "SweepInterval"},
		{reflect.TypeOf(DatabaseConfig{}), "AcquireTimeout"},
	}
	for _, f := range fields {
		sf, _ := f.typ.FieldByName(f.name)
		if sf.Type != durType {
			t.Errorf("%s.%s type = %v, want time.Duration", f.typ.Name(), f.name, sf.Type)
		}
	}
}

// TestConfigSecretFieldsJSONRedaction verifies a dumped config never contains
// the database URL.
func TestConfigSecretFieldsJSONRedaction(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{URL: "postgres://admin:hunter2@db/skyrisk"}}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("marshalled config leaked secret: %s", data)
	}
	if !strings.Contains(string(data), "***REDACTED***") {
		t.Errorf("expected redacted placeholder in %s", data)
	}
}

func TestConfigErrorTypeConstants(t *testing.T) {
	tests := map[ConfigErrorType]string{
		ErrMissingEnv:       "MISSING_ENV",
		ErrSecretResolution: "SECRET_FAILURE",
		ErrValidation:       "VALIDATION_FAILED",
		ErrParsing:          "PARSING_FAILED",
	}
	for got, want := range tests {
		if string(got) != want {
			t.Errorf("constant = %q, want %q", got, want)
		}
	}
}

func TestConfigKeysIncludesNestedTags(t *testing.T) {
	keys := configKeys(reflect.TypeOf(Config{}), nil)
	for _, k := range []string{"APP_ENV", "DATABASE_URL", "RISK_WINDY_KMH", "SESSION_TTL"} {
		if _, ok := keys[k]; !ok {
			t.Errorf("configKeys missing %s", k)
		}
	}
	if _, ok := keys["Build"]; ok {
		t.Error("BuildInfo fields must not be treated as env keys")
	}
}
