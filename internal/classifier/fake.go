package classifier

import (
	"context"
	"sync/atomic"
)

// Fake returns a fixed score or error. Used by tests and the bench tool.
type Fake struct {
	Value float64
	Error error

	calls atomic.Int64
}

func NewFake(score float64) *Fake {
	return &Fake{Value: score}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Score(ctx context.Context, text string) (float64, error) {
	f.calls.Add(1)
	if f.Error != nil {
		return 0, f.Error
	}
	return f.Value, nil
}

// Calls reports how many times Score ran.
func (f *Fake) Calls() int64 { return f.calls.Load() }
