package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := defaultConfig()
	applyDefaults(cfg)
	return cfg
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing bucket",
			mutate: func(c *Config) { c.Store.Bucket = "" },
			want:   "store.bucket",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Store.Backend = "gcs" },
			want:   "store.backend",
		},
		{
			name:   "zero poll interval",
			mutate: func(c *Config) { c.Collector.PollIntervalSeconds = 0 },
			want:   "poll_interval_seconds",
		},
		{
			name:   "unknown transport",
			mutate: func(c *Config) { c.Transport.Kind = "carrier-pigeon" },
			want:   "transport.kind",
		},
		{
			name: "http transport without url",
			mutate: func(c *Config) {
				c.Transport.Kind = TransportHTTP
				c.Transport.URL = "not a url"
			},
			want: "transport.url",
		},
		{
			name: "pipe transport without dir",
			mutate: func(c *Config) {
				c.Transport.Kind = TransportPipe
				c.Transport.PipeDir = " "
			},
			want: "transport.pipe_dir",
		},
		{
			name:   "stdio transport without command",
			mutate: func(c *Config) { c.Transport.Command = "" },
			want:   "transport.command",
		},
		{
			name:   "metrics port out of range",
			mutate: func(c *Config) { c.Collector.MetricsPort = 70000 },
			want:   "metrics_port",
		},
		{
			name:   "unknown classifier",
			mutate: func(c *Config) { c.Analyzer.Classifier = "magic" },
			want:   "analyzer.classifier",
		},
		{
			name: "telemetry bad protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "udp"
			},
			want: "telemetry.protocol",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %q", tc.want, err.Error())
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *config.Error, got %T", err)
			}
		})
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("S3_BUCKET", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("MCP_TRANSPORT", "")

	cfg, err := Load("testdata/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Bucket != "mcp-demo-bucket" {
		t.Fatalf("bucket = %q", cfg.Store.Bucket)
	}
	if cfg.Collector.PollInterval().Seconds() != 10 {
		t.Fatalf("poll interval = %v", cfg.Collector.PollInterval())
	}
	if cfg.Transport.Kind != TransportStdio {
		t.Fatalf("transport = %q", cfg.Transport.Kind)
	}
	if !cfg.Store.SSL() {
		t.Fatalf("ssl should default on")
	}
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "textpulse.yaml")
	yamlDoc := `
store:
  backend: local
  bucket: from-yaml
  local_root: /srv/items
collector:
  poll_interval_seconds: 30
transport:
  kind: duplex-pipe
  pipe_dir: /run/textpulse
analyzer:
  classifier: LEXICON
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("MCP_TRANSPORT", "")
	t.Setenv("CLASSIFIER", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Bucket != "from-env" {
		t.Fatalf("env should override yaml bucket, got %q", cfg.Store.Bucket)
	}
	if cfg.Store.Backend != BackendLocal || cfg.Store.LocalRoot != "/srv/items" {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Collector.PollIntervalSeconds != 30 {
		t.Fatalf("poll interval = %d", cfg.Collector.PollIntervalSeconds)
	}
	if cfg.Transport.Kind != TransportPipe {
		t.Fatalf("transport alias not normalized: %q", cfg.Transport.Kind)
	}
	if cfg.Analyzer.Classifier != "lexicon" {
		t.Fatalf("classifier = %q", cfg.Analyzer.Classifier)
	}
}

func TestLoadRejectsBadEnvNumber(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")

	_, err := Load("")
	var cfgErr *Error
	if !errors.As(err, &cfgErr) || cfgErr.Field != "POLL_INTERVAL" {
		t.Fatalf("expected config error for POLL_INTERVAL, got %v", err)
	}
}
