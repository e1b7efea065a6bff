// Package collector drains unprocessed text items from the item store,
// classifies them through the analysis service and marks them processed.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/straja-ai/textpulse/internal/config"
	"github.com/straja-ai/textpulse/internal/metrics"
	"github.com/straja-ai/textpulse/internal/protocol"
	"github.com/straja-ai/textpulse/internal/redact"
	"github.com/straja-ai/textpulse/internal/store"
	"github.com/straja-ai/textpulse/internal/telemetry"
	"github.com/straja-ai/textpulse/internal/transport"
)

// Options configures a Collector.
type Options struct {
	Bucket       string
	PollInterval time.Duration
	Telemetry    *telemetry.Provider
	// NewID returns correlation ids; defaults to random UUIDs.
	NewID func() string
}

// Collector runs the consume-once loop. Items are handled strictly one at a
// time, so there is never more than one request in flight.
type Collector struct {
	store     store.ItemStore
	transport transport.Transport
	counters  *metrics.Counters
	tel       *telemetry.Provider
	bucket    string
	interval  time.Duration
	newID     func() string
}

// CycleReport summarizes one pass over the bucket.
type CycleReport struct {
	Discovered int
	Processed  int
	Failed     int
}

func New(s store.ItemStore, t transport.Transport, counters *metrics.Counters, opts Options) *Collector {
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.NewNoop()
	}
	return &Collector{
		store:     s,
		transport: t,
		counters:  counters,
		tel:       tel,
		bucket:    opts.Bucket,
		interval:  opts.PollInterval,
		newID:     newID,
	}
}

// RunCycle lists the bucket once and processes every eligible item. A listing
// failure aborts the cycle and is returned; per-item failures are logged and
// counted in the report.
func (c *Collector) RunCycle(ctx context.Context) (CycleReport, error) {
	ctx, span := c.tel.StartSpan(ctx, "collector.cycle", map[string]interface{}{"store.bucket": c.bucket})
	defer span.End()

	var report CycleReport
	keys, err := store.Discover(ctx, c.store, c.bucket)
	if err != nil {
		span.RecordError(err)
		return report, fmt.Errorf("list bucket %s: %w", c.bucket, err)
	}
	report.Discovered = len(keys)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.processItem(ctx, key); err != nil {
			report.Failed++
			redact.Logf("collector: item=%s kind=%s: %v", key, ErrorKind(err), err)
			continue
		}
		report.Processed++
	}
	return report, nil
}

func (c *Collector) processItem(ctx context.Context, key string) error {
	ctx, span := c.tel.StartSpan(ctx, "collector.item", map[string]interface{}{"item.key": key})
	defer span.End()

	data, err := c.store.Get(ctx, c.bucket, key)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("get: %w", err)
	}

	req := protocol.NewRequest(c.newID(), string(data))
	resp, err := c.transport.Exchange(ctx, req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("exchange id=%s: %w", req.ID, err)
	}

	label, polarity, err := interpret(req, resp)
	if err != nil {
		span.RecordError(err)
		return err
	}

	c.counters.Record(label)
	log.Printf("collector: item=%s id=%s sentiment=%s polarity=%.3f", key, req.ID, label, polarity)

	if err := c.store.MoveToProcessed(ctx, c.bucket, key); err != nil {
		span.RecordError(err)
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// interpret accepts a response only if it answers req with a known label.
func interpret(req *protocol.Request, resp *protocol.Response) (protocol.Sentiment, float64, error) {
	if resp == nil {
		return "", 0, fmt.Errorf("%w: no response", protocol.ErrMalformed)
	}
	if !resp.Answers(req.ID) {
		return "", 0, &protocol.FaultError{ID: resp.ID, Message: fmt.Sprintf("response does not answer request %s", req.ID)}
	}
	if resp.Error != nil {
		return "", 0, &protocol.FaultError{ID: req.ID, Message: resp.Error.Message}
	}
	if resp.Result == nil {
		return "", 0, fmt.Errorf("%w: response id=%s has no result", protocol.ErrMalformed, resp.ID)
	}
	label, ok := protocol.ParseSentiment(string(resp.Result.Sentiment))
	if !ok {
		return "", 0, &protocol.FaultError{ID: resp.ID, Message: fmt.Sprintf("unknown sentiment %q", resp.Result.Sentiment)}
	}
	return label, resp.Result.Polarity, nil
}

// ErrorKind names the failure class of err for logs.
func ErrorKind(err error) string {
	var cfgErr *config.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, transport.ErrUnavailable):
		return "TransportUnavailable"
	case protocol.IsProtocolFault(err):
		return "ProtocolFault"
	case store.IsStoreError(err):
		return "StoreError"
	case errors.As(err, &cfgErr):
		return "ConfigError"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "Unknown"
	}
}
