package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/straja-ai/textpulse/internal/config"
	"github.com/straja-ai/textpulse/internal/protocol"
	"github.com/straja-ai/textpulse/internal/transport"
)

func main() {
	cfgPath := flag.String("config", "textpulse.yaml", "path to config yaml")
	n := flag.Int("n", 200, "number of exchanges")
	text := flag.String("text", "I love this, but the delivery was terribly slow.", "text to analyze")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	tr, err := transport.New(cfg.Transport, cfg.Collector.RequestTimeout())
	if err != nil {
		log.Fatalf("transport: %v", err)
	}
	defer tr.Close()

	ctx := context.Background()
	exchange := func() (*protocol.Response, error) {
		req := protocol.NewRequest(uuid.NewString(), *text)
		resp, err := tr.Exchange(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.ID != req.ID {
			return nil, fmt.Errorf("response id %q does not match %q", resp.ID, req.ID)
		}
		if resp.Error != nil {
			return nil, &protocol.FaultError{ID: resp.ID, Message: resp.Error.Message}
		}
		return resp, nil
	}

	// Warmup; also spawns the co-process when stdio is configured.
	var last *protocol.Response
	for i := 0; i < 5; i++ {
		if last, err = exchange(); err != nil {
			log.Fatalf("warmup exchange failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		if _, err := exchange(); err != nil {
			log.Fatalf("exchange failed: %v", err)
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f transport=%s sentiment=%s polarity=%.3f\n",
		len(durations),
		avg,
		p50,
		p95,
		cfg.Transport.Kind,
		last.Result.Sentiment,
		last.Result.Polarity,
	)
}
