package fiber

import (
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func TestResolveSchedulerOptionsDefaults(t *testing.T) {
	cfg := resolveSchedulerOptions(nil)
	if cfg.logger == nil {
		t.Fatal("default logger should never be nil")
	}
	if cfg.metricsEnabled {
		t.Fatal("metrics should be disabled by default")
	}
	if cfg.maxPollTimeout != 0 {
		t.Fatalf("maxPollTimeout default = %v, want 0 (block indefinitely)", cfg.maxPollTimeout)
	}
	if cfg.runQueueChunk != defaultRunQueueChunkSize {
		t.Fatalf("runQueueChunk default = %d, want %d", cfg.runQueueChunk, defaultRunQueueChunkSize)
	}
}

func TestResolveSchedulerOptionsApplyOverrides(t *testing.T) {
	l := stumpy.L.New(stumpy.L.WithLevel(logiface.LevelInformational))
	cfg := resolveSchedulerOptions([]SchedulerOption{
		WithLogger(l),
		WithMetrics(true),
		WithPollTimeout(250 * time.Millisecond),
		WithRunQueueChunkSize(16),
	})
	if cfg.logger != l {
		t.Fatal("WithLogger should install the provided logger")
	}
	if !cfg.metricsEnabled {
		t.Fatal("WithMetrics(true) should enable metrics")
	}
	if cfg.maxPollTimeout != 250*time.Millisecond {
		t.Fatalf("maxPollTimeout = %v, want 250ms", cfg.maxPollTimeout)
	}
	if cfg.runQueueChunk != 16 {
		t.Fatalf("runQueueChunk = %d, want 16", cfg.runQueueChunk)
	}
}

func TestSchedulerOptionIgnoresNilAndNilLogger(t *testing.T) {
	cfg := resolveSchedulerOptions([]SchedulerOption{nil, WithLogger(nil), WithRunQueueChunkSize(0)})
	if cfg.logger == nil {
		t.Fatal("a nil WithLogger argument should not clear the default logger")
	}
	if cfg.runQueueChunk != defaultRunQueueChunkSize {
		t.Fatalf("a non-positive WithRunQueueChunkSize should be ignored, got %d", cfg.runQueueChunk)
	}
}

func TestNewSchedulerHonoursRunQueueChunkSize(t *testing.T) {
	sched, err := NewScheduler(WithRunQueueChunkSize(3))
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer sched.Close()

	if sched.runQ.chunkSize != 3 {
		t.Fatalf("runQ.chunkSize = %d, want 3", sched.runQ.chunkSize)
	}
}
