// Package analyzer answers analyze requests with a sentiment label and score.
package analyzer

import (
	"context"
	"log"

	"github.com/straja-ai/textpulse/internal/classifier"
	"github.com/straja-ai/textpulse/internal/metrics"
	"github.com/straja-ai/textpulse/internal/protocol"
)

const (
	// PositiveThreshold and NegativeThreshold are exclusive: a score equal
	// to either one is neutral.
	PositiveThreshold = 0.1
	NegativeThreshold = -0.1
)

// Service classifies request text and keeps the service-side counters.
// It is safe for concurrent use when its classifier is.
type Service struct {
	classifier classifier.Classifier
	counters   *metrics.Counters
}

// New returns a Service. counters may be nil.
func New(c classifier.Classifier, counters *metrics.Counters) *Service {
	return &Service{classifier: c, counters: counters}
}

// Label maps a score to a sentiment label.
func Label(score float64) protocol.Sentiment {
	switch {
	case score > PositiveThreshold:
		return protocol.Positive
	case score < NegativeThreshold:
		return protocol.Negative
	default:
		return protocol.Neutral
	}
}

// HandleMessage decodes one framed request and answers it. It always returns
// a response; decode failures become Faults.
func (s *Service) HandleMessage(ctx context.Context, raw []byte) *protocol.Response {
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		id := ""
		if req != nil {
			id = req.ID
		}
		log.Printf("analyzer: rejecting malformed request id=%q: %v", id, err)
		return protocol.NewFault(id, err.Error())
	}
	return s.Handle(ctx, req)
}

// Handle answers a decoded request.
func (s *Service) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	if err := req.Validate(); err != nil {
		id := ""
		if req != nil {
			id = req.ID
		}
		log.Printf("analyzer: invalid request id=%q: %v", id, err)
		return protocol.NewFault(id, err.Error())
	}

	score, err := s.classifier.Score(ctx, req.Text())
	if err != nil {
		log.Printf("analyzer: classifier %s failed id=%q: %v", s.classifier.Name(), req.ID, err)
		return protocol.NewFault(req.ID, "classification failed: "+err.Error())
	}

	label := Label(score)
	s.counters.Record(label)
	return protocol.NewResult(req.ID, label, score)
}
