package notify

import (
	"context"
	"errors"
)

// MultiSink fans each update out to every nested sink. Publish attempts all
// sinks even when some fail and returns the joined errors.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink wraps the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Publish delivers the update to every sink.
func (m *MultiSink) Publish(ctx context.Context, update Update) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
