// Package transport carries analyze requests between the collector and the
// analysis service. Every variant moves one request and one response per
// exchange and never has more than one request in flight.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/straja-ai/textpulse/internal/config"
	"github.com/straja-ai/textpulse/internal/protocol"
	"github.com/straja-ai/textpulse/internal/telemetry"
)

// ErrUnavailable means the service could not be reached or did not answer in
// time. The caller should retry later.
var ErrUnavailable = errors.New("analysis service unavailable")

// Transport sends one request and waits for its response.
type Transport interface {
	Exchange(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
	Close() error
}

// Handler is the service side of every transport.
type Handler interface {
	HandleMessage(ctx context.Context, raw []byte) *protocol.Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, raw []byte) *protocol.Response

func (f HandlerFunc) HandleMessage(ctx context.Context, raw []byte) *protocol.Response {
	return f(ctx, raw)
}

// New builds the client transport selected by cfg.Kind.
func New(cfg config.TransportConfig, timeout time.Duration) (Transport, error) {
	switch cfg.Kind {
	case config.TransportHTTP:
		return NewHTTPClient(cfg.URL, timeout), nil
	case config.TransportPipe:
		return NewPipeClient(cfg.PipeDir, timeout), nil
	case config.TransportStdio:
		argv := strings.Fields(cfg.Command)
		if len(argv) == 0 {
			return nil, errors.New("transport stdio: command is empty")
		}
		return NewCoProcess(argv, timeout), nil
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", cfg.Kind)
	}
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// decodeFrame turns one framed payload into a response that carries exactly
// one of result or error.
func decodeFrame(data []byte) (*protocol.Response, error) {
	resp, err := protocol.DecodeResponse(data)
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

type instrumented struct {
	next Transport
	kind string
	tel  *telemetry.Provider
}

// Instrument wraps t so every exchange is traced and timed.
func Instrument(t Transport, kind string, tel *telemetry.Provider) Transport {
	if tel == nil {
		return t
	}
	return &instrumented{next: t, kind: kind, tel: tel}
}

func (i *instrumented) Exchange(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	ctx, span := i.tel.StartSpan(ctx, "transport.exchange", map[string]interface{}{
		"textpulse.transport":      i.kind,
		"textpulse.correlation_id": req.ID,
	})
	defer span.End()

	start := time.Now()
	resp, err := i.next.Exchange(ctx, req)
	i.tel.RecordExchange(ctx, i.kind, outcome(resp, err), time.Since(start))
	if err != nil {
		span.RecordError(err)
	}
	return resp, err
}

func (i *instrumented) Close() error { return i.next.Close() }

func outcome(resp *protocol.Response, err error) string {
	switch {
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case err != nil:
		return "malformed"
	case resp.Error != nil:
		return "fault"
	default:
		return "ok"
	}
}
