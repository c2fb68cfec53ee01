package dashboard

import (
	"context"
	"sync/atomic"
)

// Sequencer issues strictly increasing tickets for server-bound operations.
type Sequencer interface {
	Next(ctx context.Context) (uint64, error)
}

// CounterSequencer is an in-process Sequencer.
type CounterSequencer struct {
	n atomic.Uint64
}

// NewCounterSequencer returns a sequencer whose first ticket is floor+1.
func NewCounterSequencer(floor uint64) *CounterSequencer {
	s := &CounterSequencer{}
	s.n.Store(floor)
	return s
}

// Next implements Sequencer.
func (s *CounterSequencer) Next(context.Context) (uint64, error) {
	return s.n.Add(1), nil
}
