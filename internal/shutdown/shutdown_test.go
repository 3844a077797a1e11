package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdown_RunsAllStops(t *testing.T) {
	m := New(time.Second, nil)

	var ran int32
	for i := 0; i < 3; i++ {
		m.Register("component", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}

	m.Shutdown()

	if got := atomic.LoadInt32(&ran); got != 3 {
		t.Errorf("stop functions ran = %d, want 3", got)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	m := New(time.Second, nil)

	var ran int32
	m.Register("once", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	m.Shutdown()
	m.Shutdown()

	if got := atomic.LoadInt32(&ran); got != 1 {
		t.Errorf("stop function ran %d times, want 1", got)
	}
}

func TestShutdown_FailingStopDoesNotBlockOthers(t *testing.T) {
	m := New(time.Second, nil)

	var ran int32
	m.Register("failing", func(ctx context.Context) error {
		return errors.New("cleanup failed")
	})
	m.Register("healthy", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	m.Shutdown()

	if atomic.LoadInt32(&ran) != 1 {
		t.Error("healthy stop did not run after a failing one")
	}
}

func TestShutdown_TimesOut(t *testing.T) {
	m := New(50*time.Millisecond, nil)

	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	m.Shutdown()

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Shutdown took %v, want roughly the 50ms timeout", elapsed)
	}
}

func TestTriggered_ClosedOnShutdown(t *testing.T) {
	m := New(time.Second, nil)

	select {
	case <-m.Triggered():
		t.Fatal("Triggered() closed before Shutdown")
	default:
	}

	m.Shutdown()

	select {
	case <-m.Triggered():
	default:
		t.Error("Triggered() not closed after Shutdown")
	}
}
