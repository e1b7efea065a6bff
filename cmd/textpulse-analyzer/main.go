package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straja-ai/textpulse/internal/analyzer"
	"github.com/straja-ai/textpulse/internal/classifier"
	"github.com/straja-ai/textpulse/internal/config"
	"github.com/straja-ai/textpulse/internal/metrics"
	"github.com/straja-ai/textpulse/internal/redact"
	"github.com/straja-ai/textpulse/internal/transport"
)

func main() {
	configPath := flag.String("config", "textpulse.yaml", "Path to textpulse config file")
	transportFlag := flag.String("transport", "", "Exposure: stdio, http or pipe (overrides config)")
	portFlag := flag.Int("port", 0, "HTTP listen port (overrides config)")
	metricsFlag := flag.Bool("metrics", true, "Serve /metrics on analyzer.metrics_port")
	flag.Parse()

	// stdout belongs to the protocol in stdio mode.
	log.SetOutput(os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		redact.Fatalf("failed to load config: %v", err)
	}

	kind := cfg.Transport.Kind
	if *transportFlag != "" {
		kind = config.NormalizeTransport(*transportFlag)
	}
	port := cfg.Analyzer.Port
	if *portFlag != 0 {
		port = *portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clf, err := classifier.New(ctx, cfg.Analyzer)
	if err != nil {
		redact.Fatalf("classifier: %v", err)
	}
	defer classifier.Close(clf)

	reg := metrics.NewRegistry()
	svc := analyzer.New(clf, metrics.NewAnalyzerCounters(reg))

	if *metricsFlag {
		// A respawned co-process may start before its killed predecessor
		// has released the port.
		retry := time.Duration(0)
		if kind == config.TransportStdio {
			retry = time.Second
		}
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Analyzer.MetricsPort)
			if err := metrics.ServeWithRetry(ctx, addr, reg, retry); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	log.Printf("textpulse analyzer: transport=%s classifier=%s", kind, clf.Name())

	switch kind {
	case config.TransportStdio:
		err = transport.ServeLines(ctx, os.Stdin, os.Stdout, svc)
	case config.TransportHTTP:
		gin.SetMode(gin.ReleaseMode)
		err = transport.ServeHTTP(ctx, fmt.Sprintf(":%d", port), svc)
	case config.TransportPipe:
		err = transport.ServePipe(ctx, cfg.Transport.PipeDir, svc)
	default:
		log.Fatalf("unknown transport %q (want stdio, http or pipe)", kind)
	}
	if err != nil {
		log.Fatalf("analyzer: %v", err)
	}
}
