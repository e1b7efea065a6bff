package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/straja-ai/textpulse/internal/collector"
	"github.com/straja-ai/textpulse/internal/config"
	"github.com/straja-ai/textpulse/internal/metrics"
	"github.com/straja-ai/textpulse/internal/redact"
	"github.com/straja-ai/textpulse/internal/store"
	"github.com/straja-ai/textpulse/internal/telemetry"
	"github.com/straja-ai/textpulse/internal/transport"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "textpulse.yaml", "Path to textpulse config file")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		redact.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.Service + "-collector",
		Version:  version,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}()

	items, err := store.New(cfg.Store)
	if err != nil {
		redact.Fatalf("store: %v", err)
	}

	tr, err := transport.New(cfg.Transport, cfg.Collector.RequestTimeout())
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	tr = transport.Instrument(tr, cfg.Transport.Kind, tel)
	defer tr.Close()

	reg := metrics.NewRegistry()
	counters := metrics.NewCollectorCounters(reg)

	c := collector.New(items, tr, counters, collector.Options{
		Bucket:       cfg.Store.Bucket,
		PollInterval: cfg.Collector.PollInterval(),
		Telemetry:    tel,
	})

	redact.Logf("textpulse collector %s: store=%s bucket=%s transport=%s",
		version, cfg.Store.Backend, cfg.Store.Bucket, describeTransport(cfg.Transport))

	if *once {
		report, err := c.RunCycle(ctx)
		if err != nil {
			redact.Fatalf("cycle failed kind=%s: %v", collector.ErrorKind(err), err)
		}
		log.Printf("cycle done discovered=%d processed=%d failed=%d", report.Discovered, report.Processed, report.Failed)
		return
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Collector.MetricsPort)
		if err := metrics.Serve(ctx, addr, reg); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	if err := c.Run(ctx); err != nil {
		log.Fatalf("collector: %v", err)
	}
}

func describeTransport(t config.TransportConfig) string {
	switch t.Kind {
	case config.TransportHTTP:
		return t.Kind + " " + t.URL
	case config.TransportPipe:
		return t.Kind + " " + t.PipeDir
	default:
		return t.Kind + " " + t.Command
	}
}
