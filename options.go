// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import "time"

// schedulerOptions holds configuration resolved from SchedulerOption values.
type schedulerOptions struct {
	logger         *Logger
	metricsEnabled bool
	maxPollTimeout time.Duration
	runQueueChunk  int
}

// SchedulerOption configures a Scheduler at construction.
type SchedulerOption interface {
	applyScheduler(*schedulerOptions)
}

type schedulerOptionImpl struct {
	apply func(*schedulerOptions)
}

func (o *schedulerOptionImpl) applyScheduler(opts *schedulerOptions) {
	o.apply(opts)
}

// WithLogger attaches a structured logger. Without this option, scheduler
// events are logged to a no-op logger (zero cost).
func WithLogger(l *Logger) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) {
		if l != nil {
			opts.logger = l
		}
	}}
}

// WithMetrics enables the turn/queue-depth/active-fd counters exposed via
// Scheduler.Metrics. Disabled by default.
func WithMetrics(enabled bool) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) {
		opts.metricsEnabled = enabled
	}}
}

// WithPollTimeout caps the "wait indefinitely" case of the poll timeout
// computation: when the run queue is empty, no timers are pending, but fds
// are active, the scheduler would otherwise block in poll with no timeout.
// A positive cap bounds that block, which is useful for schedulers that
// want to periodically recheck external state (e.g. a context
// cancellation) without a dedicated wake source. Zero (the default) means
// block indefinitely.
func WithPollTimeout(max time.Duration) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) {
		opts.maxPollTimeout = max
	}}
}

// WithRunQueueChunkSize sets the chunk size used by the run queue's
// internal chunked linked list. Default 128.
func WithRunQueueChunkSize(n int) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) {
		if n > 0 {
			opts.runQueueChunk = n
		}
	}}
}

func resolveSchedulerOptions(opts []SchedulerOption) *schedulerOptions {
	cfg := &schedulerOptions{
		logger:        defaultLogger(),
		runQueueChunk: defaultRunQueueChunkSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyScheduler(cfg)
	}
	return cfg
}
