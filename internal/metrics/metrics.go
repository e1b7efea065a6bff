package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/straja-ai/textpulse/internal/protocol"
)

// Counters is the set of four classification counters owned by one role.
// The collector and the analysis service each build their own set on their
// own registry; the two are never shared.
type Counters struct {
	Processed prometheus.Counter
	Positive  prometheus.Counter
	Negative  prometheus.Counter
	Neutral   prometheus.Counter
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewCollectorCounters registers the collector-side counters.
func NewCollectorCounters(reg prometheus.Registerer) *Counters {
	return newCounters(reg, "sentiment", "Total processed files", "Positive results", "Negative results", "Neutral results")
}

// NewAnalyzerCounters registers the analysis-service counters.
func NewAnalyzerCounters(reg prometheus.Registerer) *Counters {
	return newCounters(reg, "tool_sentiment", "Tool classified texts", "Tool positive count", "Tool negative count", "Tool neutral count")
}

func newCounters(reg prometheus.Registerer, prefix, processedHelp, posHelp, negHelp, neuHelp string) *Counters {
	c := &Counters{
		Processed: prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_processed_total", Help: processedHelp}),
		Positive:  prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_positive_total", Help: posHelp}),
		Negative:  prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_negative_total", Help: negHelp}),
		Neutral:   prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + "_neutral_total", Help: neuHelp}),
	}
	if reg != nil {
		reg.MustRegister(c.Processed, c.Positive, c.Negative, c.Neutral)
	}
	return c
}

// Record counts one accepted classification.
func (c *Counters) Record(s protocol.Sentiment) {
	if c == nil {
		return
	}
	c.Processed.Inc()
	switch s {
	case protocol.Positive:
		c.Positive.Inc()
	case protocol.Negative:
		c.Negative.Inc()
	default:
		c.Neutral.Inc()
	}
}

// Handler exposes /metrics and /healthz for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// Serve runs the metrics endpoint until ctx is cancelled.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ServeWithRetry runs Serve and, when every is positive, retries a failed
// bind every interval until ctx is cancelled.
func ServeWithRetry(ctx context.Context, addr string, reg *prometheus.Registry, every time.Duration) error {
	for {
		err := Serve(ctx, addr, reg)
		if err == nil || every <= 0 || ctx.Err() != nil {
			return err
		}
		log.Printf("metrics server on %s: %v; retrying in %s", addr, err, every)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(every):
		}
	}
}
