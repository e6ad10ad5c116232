package fiber

import "sync/atomic"

// schedulerMetrics holds the lightweight atomic counters and gauges
// maintained by a Scheduler when metrics are enabled (WithMetrics(true)).
type schedulerMetrics struct {
	enabled bool

	turns         atomic.Uint64
	fibersRun     atomic.Uint64
	timersFired   atomic.Uint64
	runQueueLen   atomic.Int64
	activeFDs     atomic.Int64
	timersPending atomic.Int64
}

// SchedulerMetrics is a point-in-time snapshot of a Scheduler's counters.
type SchedulerMetrics struct {
	Turns          uint64
	FibersRun      uint64
	TimersFired    uint64
	RunQueueLength int64
	ActiveFDs      int64
	TimersPending  int64
}

func (m *schedulerMetrics) snapshot() SchedulerMetrics {
	return SchedulerMetrics{
		Turns:          m.turns.Load(),
		FibersRun:      m.fibersRun.Load(),
		TimersFired:    m.timersFired.Load(),
		RunQueueLength: m.runQueueLen.Load(),
		ActiveFDs:      m.activeFDs.Load(),
		TimersPending:  m.timersPending.Load(),
	}
}

func (m *schedulerMetrics) recordTurn(fibersRun, timersFired int) {
	if !m.enabled {
		return
	}
	m.turns.Add(1)
	m.fibersRun.Add(uint64(fibersRun))
	m.timersFired.Add(uint64(timersFired))
}

func (m *schedulerMetrics) setRunQueueLen(n int) {
	if m.enabled {
		m.runQueueLen.Store(int64(n))
	}
}

func (m *schedulerMetrics) setActiveFDs(n int) {
	if m.enabled {
		m.activeFDs.Store(int64(n))
	}
}

func (m *schedulerMetrics) setTimersPending(n int) {
	if m.enabled {
		m.timersPending.Store(int64(n))
	}
}
