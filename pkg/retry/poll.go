package retry

import (
	"context"
	"time"
)

// PollOutcome describes how a Poll ended.
type PollOutcome string

const (
	PollSucceeded PollOutcome = "succeeded"
	PollTimedOut  PollOutcome = "timed_out"
	PollErrored   PollOutcome = "errored"
)

// PollResult is returned by Poll. Err is set only for PollErrored.
type PollResult struct {
	Outcome  PollOutcome
	Attempts int
	Err      error
}

// Succeeded reports whether the predicate returned true.
func (r PollResult) Succeeded() bool {
	return r.Outcome == PollSucceeded
}

// Predicate is evaluated once per attempt.
type Predicate func(ctx context.Context) (bool, error)

// Poll evaluates predicate up to attempts times, waiting interval between
// evaluations. A predicate error stops polling immediately. Cancellation of
// ctx is reported as PollErrored with the context error.
func Poll(ctx context.Context, attempts int, interval time.Duration, predicate Predicate) PollResult {
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return PollResult{Outcome: PollErrored, Attempts: attempt - 1, Err: err}
		}

		ok, err := predicate(ctx)
		if err != nil {
			return PollResult{Outcome: PollErrored, Attempts: attempt, Err: err}
		}
		if ok {
			return PollResult{Outcome: PollSucceeded, Attempts: attempt}
		}

		if attempt < attempts && !sleep(ctx, interval) {
			return PollResult{Outcome: PollErrored, Attempts: attempt, Err: ctx.Err()}
		}
	}

	return PollResult{Outcome: PollTimedOut, Attempts: attempts}
}
