package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/straja-ai/textpulse/internal/protocol"
)

func TestRecordIncrementsTotalAndLabel(t *testing.T) {
	reg := NewRegistry()
	c := NewCollectorCounters(reg)

	c.Record(protocol.Positive)
	c.Record(protocol.Positive)
	c.Record(protocol.Negative)
	c.Record(protocol.Neutral)

	if got := testutil.ToFloat64(c.Processed); got != 4 {
		t.Fatalf("processed = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.Positive); got != 2 {
		t.Fatalf("positive = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Negative); got != 1 {
		t.Fatalf("negative = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Neutral); got != 1 {
		t.Fatalf("neutral = %v, want 1", got)
	}
}

func TestRolesUseSeparateCounterSets(t *testing.T) {
	collectorReg := NewRegistry()
	analyzerReg := NewRegistry()
	col := NewCollectorCounters(collectorReg)
	ana := NewAnalyzerCounters(analyzerReg)

	ana.Record(protocol.Negative)

	if got := testutil.ToFloat64(col.Negative); got != 0 {
		t.Fatalf("collector counter moved with analyzer: %v", got)
	}
	if got := testutil.ToFloat64(ana.Negative); got != 1 {
		t.Fatalf("analyzer negative = %v, want 1", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := NewRegistry()
	c := NewAnalyzerCounters(reg)
	c.Record(protocol.Positive)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{
		"tool_sentiment_processed_total 1",
		"tool_sentiment_positive_total 1",
		"tool_sentiment_negative_total 0",
		"tool_sentiment_neutral_total 0",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metrics output missing %q", name)
		}
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", health.StatusCode)
	}
}

func TestServeWithRetryTakesPortOnceFreed(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := held.Addr().String()

	if err := ServeWithRetry(context.Background(), addr, NewRegistry(), 0); err == nil {
		t.Fatalf("expected bind error without retry")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeWithRetry(ctx, addr, NewRegistry(), 20*time.Millisecond) }()

	time.Sleep(60 * time.Millisecond)
	held.Close()

	client := &http.Client{Timeout: 200 * time.Millisecond}
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := client.Get("http://" + addr + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics server never took over %s: %v", addr, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
