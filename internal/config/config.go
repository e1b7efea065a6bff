package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds textpulse configuration for both the collector and the analyzer.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Collector CollectorConfig `yaml:"collector"`
	Transport TransportConfig `yaml:"transport"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type StoreConfig struct {
	Backend         string `yaml:"backend"` // s3 | local
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"` // host[:port] or URL of an S3-compatible service
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          *bool  `yaml:"use_ssl"`
	LocalRoot       string `yaml:"local_root"`
}

type CollectorConfig struct {
	PollIntervalSeconds   int `yaml:"poll_interval_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	MetricsPort           int `yaml:"metrics_port"`
}

type TransportConfig struct {
	Kind    string `yaml:"kind"` // http | pipe | stdio
	URL     string `yaml:"url"`
	PipeDir string `yaml:"pipe_dir"`
	Command string `yaml:"command"`
}

type AnalyzerConfig struct {
	Port        int          `yaml:"port"`
	MetricsPort int          `yaml:"metrics_port"`
	Classifier  string       `yaml:"classifier"` // lexicon | onnx | cloudnl | openai
	ONNX        ONNXConfig   `yaml:"onnx"`
	OpenAI      OpenAIConfig `yaml:"openai"`
	// CloudNLCredentials is base64 encoded service-account JSON; env only.
	CloudNLCredentials string `yaml:"-"`
}

type ONNXConfig struct {
	ModelDir string `yaml:"model_dir"`
	SeqLen   int    `yaml:"seq_len"`
}

type OpenAIConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

const (
	TransportHTTP  = "http"
	TransportPipe  = "pipe"
	TransportStdio = "stdio"

	BackendS3    = "s3"
	BackendLocal = "local"
)

// PollInterval returns the collector's Idle duration between cycles.
func (c CollectorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the deadline applied to each exchange.
func (c CollectorConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SSL reports whether the S3 endpoint is reached over TLS.
func (s StoreConfig) SSL() bool {
	if s.UseSSL == nil {
		return true
	}
	return *s.UseSSL
}

// Load reads configuration from an optional YAML file, then a .env file in the
// working directory, then the process environment. Environment wins.
// A missing YAML file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &Error{Field: path, Err: err}
			}
		case os.IsNotExist(err):
			log.Printf("config file %s not found; using defaults and environment", path)
		default:
			return nil, &Error{Field: path, Err: err}
		}
	}

	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env")
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:   BackendS3,
			Bucket:    "mcp-demo-bucket",
			Endpoint:  "s3.amazonaws.com",
			Region:    "us-east-1",
			LocalRoot: "./data",
		},
		Collector: CollectorConfig{
			PollIntervalSeconds:   10,
			RequestTimeoutSeconds: 20,
			MetricsPort:           8000,
		},
		Transport: TransportConfig{
			Kind:    TransportStdio,
			URL:     "http://mcp-tool.ai-tools.svc.cluster.local",
			PipeDir: "/tmp/textpulse",
			Command: "textpulse-analyzer -transport stdio",
		},
		Analyzer: AnalyzerConfig{
			Port:        8080,
			MetricsPort: 8001,
			Classifier:  "lexicon",
			ONNX:        ONNXConfig{SeqLen: 128},
			OpenAI:      OpenAIConfig{Model: "gpt-4o-mini"},
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4317",
			Protocol: "grpc",
			Service:  "textpulse",
		},
	}
}

func applyDefaults(cfg *Config) {
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendS3
	}
	if cfg.Store.Region == "" {
		cfg.Store.Region = "us-east-1"
	}
	if cfg.Store.LocalRoot == "" {
		cfg.Store.LocalRoot = "./data"
	}

	cfg.Transport.Kind = NormalizeTransport(cfg.Transport.Kind)
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = TransportStdio
	}
	cfg.Transport.URL = strings.TrimRight(strings.TrimSpace(cfg.Transport.URL), "/")

	if cfg.Analyzer.Classifier == "" {
		cfg.Analyzer.Classifier = "lexicon"
	}
	cfg.Analyzer.Classifier = strings.ToLower(strings.TrimSpace(cfg.Analyzer.Classifier))
	if cfg.Analyzer.ONNX.SeqLen <= 0 {
		cfg.Analyzer.ONNX.SeqLen = 128
	}
	if cfg.Analyzer.OpenAI.Model == "" {
		cfg.Analyzer.OpenAI.Model = "gpt-4o-mini"
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "textpulse"
	}
}

// NormalizeTransport maps accepted aliases onto the three transport names.
func NormalizeTransport(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "http":
		return TransportHTTP
	case "pipe", "duplex-pipe", "fifo":
		return TransportPipe
	case "stdio", "co-process", "coprocess":
		return TransportStdio
	default:
		return strings.ToLower(strings.TrimSpace(kind))
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Store.Bucket, "S3_BUCKET")
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Store.Region, "AWS_REGION")
	setString(&cfg.Store.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&cfg.Store.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&cfg.Store.LocalRoot, "LOCAL_STORE_ROOT")
	if v, ok := lookup("S3_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Field: "S3_USE_SSL", Err: err}
		}
		cfg.Store.UseSSL = &b
	}

	if err := setInt(&cfg.Collector.PollIntervalSeconds, "POLL_INTERVAL"); err != nil {
		return err
	}
	if err := setInt(&cfg.Collector.RequestTimeoutSeconds, "REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if err := setInt(&cfg.Collector.MetricsPort, "METRICS_PORT"); err != nil {
		return err
	}

	setString(&cfg.Transport.Kind, "MCP_TRANSPORT")
	setString(&cfg.Transport.URL, "MCP_TOOL_URL")
	setString(&cfg.Transport.PipeDir, "MCP_PIPE_DIR")
	setString(&cfg.Transport.Command, "MCP_TOOL_COMMAND")

	if err := setInt(&cfg.Analyzer.Port, "ANALYZER_PORT"); err != nil {
		return err
	}
	if err := setInt(&cfg.Analyzer.MetricsPort, "ANALYZER_METRICS_PORT"); err != nil {
		return err
	}
	setString(&cfg.Analyzer.Classifier, "CLASSIFIER")
	setString(&cfg.Analyzer.ONNX.ModelDir, "ONNX_MODEL_DIR")
	if err := setInt(&cfg.Analyzer.ONNX.SeqLen, "ONNX_SEQ_LEN"); err != nil {
		return err
	}
	setString(&cfg.Analyzer.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Analyzer.OpenAI.Model, "OPENAI_MODEL")
	setString(&cfg.Analyzer.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Analyzer.CloudNLCredentials, "NATURAL_LANGUAGE_CREDENTIALS")

	if v, ok := lookup("OTEL_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Field: "OTEL_ENABLED", Err: err}
		}
		cfg.Telemetry.Enabled = b
	}
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.Protocol, "OTEL_PROTOCOL")
	setString(&cfg.Telemetry.Service, "OTEL_SERVICE_NAME")
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &Error{Field: name, Err: err}
	}
	*dst = n
	return nil
}
