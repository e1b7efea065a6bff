package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/straja-ai/textpulse/internal/config"
	"github.com/straja-ai/textpulse/internal/protocol"
	"github.com/straja-ai/textpulse/internal/telemetry"
)

// helperEnv switches the test binary into a co-process stand-in.
const helperEnv = "TEXTPULSE_TRANSPORT_HELPER"

func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "serve":
		if err := ServeLines(context.Background(), os.Stdin, os.Stdout, stubHandler(0.6)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "hang":
		_, _ = io.Copy(io.Discard, os.Stdin)
		os.Exit(0)
	case "wrongid":
		answerStale := HandlerFunc(func(ctx context.Context, raw []byte) *protocol.Response {
			return protocol.NewResult("stale", protocol.Positive, 0.6)
		})
		if err := ServeLines(context.Background(), os.Stdin, os.Stdout, answerStale); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	case "garbage":
		br := bufio.NewReader(os.Stdin)
		for {
			if _, err := br.ReadString('\n'); err != nil {
				os.Exit(0)
			}
			fmt.Println("this is not json")
		}
	}
	os.Exit(m.Run())
}

// stubHandler answers every valid request with a fixed positive result.
func stubHandler(polarity float64) Handler {
	return HandlerFunc(func(ctx context.Context, raw []byte) *protocol.Response {
		req, err := protocol.DecodeRequest(raw)
		if err != nil {
			return protocol.NewFault("", err.Error())
		}
		if err := req.Validate(); err != nil {
			return protocol.NewFault(req.ID, err.Error())
		}
		return protocol.NewResult(req.ID, protocol.Positive, polarity)
	})
}

func TestWithDeadlineReturnsResult(t *testing.T) {
	v, err := WithDeadline(context.Background(), time.Second, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("got %d, %v", v, err)
	}

	boom := errors.New("boom")
	if _, err := WithDeadline(context.Background(), time.Second, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestWithDeadlineAbandonsSlowWork(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := WithDeadline(context.Background(), 50*time.Millisecond, func() (string, error) {
		<-release
		return "late", nil
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("abandon took %v", elapsed)
	}
}

func TestWithDeadlineHonorsParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan struct{})
	defer close(block)
	if _, err := WithDeadline(ctx, 0, func() (int, error) { <-block; return 1, nil }); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewSelectsVariant(t *testing.T) {
	cases := []struct {
		cfg  config.TransportConfig
		want string
	}{
		{config.TransportConfig{Kind: config.TransportHTTP, URL: "http://localhost:8080"}, "*transport.HTTPClient"},
		{config.TransportConfig{Kind: config.TransportPipe, PipeDir: "/tmp/x"}, "*transport.PipeClient"},
		{config.TransportConfig{Kind: config.TransportStdio, Command: "textpulse-analyzer -transport stdio"}, "*transport.CoProcess"},
	}
	for _, tc := range cases {
		tr, err := New(tc.cfg, time.Second)
		if err != nil {
			t.Fatalf("new %s: %v", tc.cfg.Kind, err)
		}
		if got := fmt.Sprintf("%T", tr); got != tc.want {
			t.Fatalf("kind %s built %s", tc.cfg.Kind, got)
		}
	}

	if _, err := New(config.TransportConfig{Kind: config.TransportStdio}, time.Second); err == nil {
		t.Fatalf("empty command should fail")
	}
	if _, err := New(config.TransportConfig{Kind: "smoke"}, time.Second); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}

type scripted struct {
	resp *protocol.Response
	err  error
}

func (s scripted) Exchange(context.Context, *protocol.Request) (*protocol.Response, error) {
	return s.resp, s.err
}
func (s scripted) Close() error { return nil }

func TestInstrumentPassesThrough(t *testing.T) {
	want := protocol.NewResult("i", protocol.Neutral, 0)
	tr := Instrument(scripted{resp: want}, "http", telemetry.NewNoop())
	got, err := tr.Exchange(context.Background(), protocol.NewRequest("i", "x"))
	if err != nil || got != want {
		t.Fatalf("got %+v, %v", got, err)
	}

	failing := Instrument(scripted{err: unavailable("down")}, "pipe", telemetry.NewNoop())
	if _, err := failing.Exchange(context.Background(), protocol.NewRequest("j", "x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := []struct {
		resp *protocol.Response
		err  error
		want string
	}{
		{protocol.NewResult("a", protocol.Positive, 1), nil, "ok"},
		{protocol.NewFault("a", "nope"), nil, "fault"},
		{nil, unavailable("x"), "unavailable"},
		{nil, protocol.ErrMalformed, "malformed"},
	}
	for _, tc := range cases {
		if got := outcome(tc.resp, tc.err); got != tc.want {
			t.Fatalf("outcome = %s, want %s", got, tc.want)
		}
	}
}
