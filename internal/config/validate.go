package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Error reports invalid startup configuration. It is always fatal.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) error {
	return &Error{Field: field, Err: fmt.Errorf(format, args...)}
}

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &Error{Field: "config", Err: errors.New("config is nil")}
	}

	if err := validateStoreConfig(cfg.Store); err != nil {
		return err
	}

	if cfg.Collector.PollIntervalSeconds <= 0 {
		return invalid("collector.poll_interval_seconds", "must be > 0, got %d", cfg.Collector.PollIntervalSeconds)
	}
	if cfg.Collector.RequestTimeoutSeconds <= 0 {
		return invalid("collector.request_timeout_seconds", "must be > 0, got %d", cfg.Collector.RequestTimeoutSeconds)
	}
	if err := validatePort("collector.metrics_port", cfg.Collector.MetricsPort); err != nil {
		return err
	}

	if err := validateTransportConfig(cfg.Transport); err != nil {
		return err
	}

	if err := validatePort("analyzer.port", cfg.Analyzer.Port); err != nil {
		return err
	}
	if err := validatePort("analyzer.metrics_port", cfg.Analyzer.MetricsPort); err != nil {
		return err
	}
	switch cfg.Analyzer.Classifier {
	case "lexicon", "onnx", "cloudnl", "openai":
	default:
		return invalid("analyzer.classifier", "must be one of lexicon|onnx|cloudnl|openai, got %q", cfg.Analyzer.Classifier)
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateStoreConfig(s StoreConfig) error {
	if strings.TrimSpace(s.Bucket) == "" {
		return invalid("store.bucket", "must be set")
	}
	switch s.Backend {
	case BackendS3:
		if strings.TrimSpace(s.Endpoint) == "" {
			return invalid("store.endpoint", "must be set for the s3 backend")
		}
	case BackendLocal:
		if strings.TrimSpace(s.LocalRoot) == "" {
			return invalid("store.local_root", "must be set for the local backend")
		}
	default:
		return invalid("store.backend", "must be s3 or local, got %q", s.Backend)
	}
	return nil
}

func validateTransportConfig(t TransportConfig) error {
	switch t.Kind {
	case TransportHTTP:
		u, err := url.Parse(t.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("transport.url", "must be an absolute http(s) URL, got %q", t.URL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return invalid("transport.url", "unsupported scheme %q", u.Scheme)
		}
	case TransportPipe:
		if strings.TrimSpace(t.PipeDir) == "" {
			return invalid("transport.pipe_dir", "must be set for the pipe transport")
		}
	case TransportStdio:
		if len(strings.Fields(t.Command)) == 0 {
			return invalid("transport.command", "must be set for the stdio transport")
		}
	default:
		return invalid("transport.kind", "must be http|pipe|stdio, got %q", t.Kind)
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return invalid("telemetry.endpoint", "must be set when telemetry is enabled")
	}
	switch strings.ToLower(t.Protocol) {
	case "grpc", "http":
	default:
		return invalid("telemetry.protocol", "must be grpc or http, got %q", t.Protocol)
	}
	return nil
}

func validatePort(field string, port int) error {
	if port <= 0 || port > 65535 {
		return invalid(field, "must be in 1..65535, got %d", port)
	}
	return nil
}
