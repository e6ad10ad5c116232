package fiber

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type accepted by WithLogger: a logiface
// generic logger bound to stumpy's JSON event type. Any code constructing
// compatible loggers via stumpy.L (or a logiface-compatible alternative
// backend) can be passed directly.
type Logger = logiface.Logger[*stumpy.Event]

// noopLogger is used when no logger is configured, so every log call site
// in the scheduler is unconditionally safe to reach and costs nothing when
// logging is not wired up.
var noopLogger = stumpy.L.New(stumpy.L.WithLevel(logiface.LevelDisabled))

func defaultLogger() *Logger {
	return noopLogger
}

// logTurn emits a debug-level record describing one scheduler turn.
func logTurn(l *Logger, turn uint64, batchSize, timersFired, fdsDrained int) {
	l.Debug().
		Uint64(`turn`, turn).
		Int(`batch`, batchSize).
		Int(`timers`, timersFired).
		Int(`fds`, fdsDrained).
		Log(`scheduler turn`)
}

// logUnknownFd emits a warn-level record for a readiness event delivered
// against an fd no longer present in the wait-source table.
func logUnknownFd(l *Logger, fd int) {
	l.Warning().
		Int(`fd`, fd).
		Log(`readiness delivered for unknown fd`)
}

// logFiberPanic emits an error-level record for a recovered fiber panic.
func logFiberPanic(l *Logger, name string, err error) {
	l.Err().
		Str(`fiber`, name).
		Err(err).
		Log(`fiber panicked`)
}

// logBackendFailure emits an error-level record for an unrecoverable
// readiness backend error that is about to terminate the scheduler.
func logBackendFailure(l *Logger, err error) {
	l.Err().
		Err(err).
		Log(`readiness backend failure, terminating scheduler`)
}
