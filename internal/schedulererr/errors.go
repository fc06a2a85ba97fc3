// Package schedulererr defines the scheduler's error taxonomy.
//
// Four kinds only: a bad synchronous submission (UserInputError), a
// crashed scheduler thread (SchedulerCrashed), a failed pool task
// (PoolTaskFailed), and a client channel that was garbage collected
// (ChannelDead). Cancellation is never an error and missing cache files
// are never an error; neither has a type here.
package schedulererr

import (
	"errors"
	"fmt"
)

// UserInputError is raised synchronously from the query submission call.
// It never touches scheduler state.
type UserInputError struct {
	Reason string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("user input error: %s", e.Reason)
}

func NewUserInputError(format string, args ...any) error {
	return &UserInputError{Reason: fmt.Sprintf(format, args...)}
}

// SchedulerCrashed wraps the handler panic/error that terminated the
// scheduler's run loop. It is captured once and returned from every
// subsequent public call on the data source.
type SchedulerCrashed struct {
	Cause error
}

func (e *SchedulerCrashed) Error() string {
	return fmt.Sprintf("scheduler crashed: %v", e.Cause)
}

func (e *SchedulerCrashed) Unwrap() error { return e.Cause }

func NewSchedulerCrashed(cause error) error {
	return &SchedulerCrashed{Cause: cause}
}

// PoolTaskFailed is delivered in place of an array when a submitted
// compute task's future resolves to an error. The owning pipeline tags
// the produce-index as failed and cancels the query.
type PoolTaskFailed struct {
	ComputeFP string
	Cause     error
}

func (e *PoolTaskFailed) Error() string {
	return fmt.Sprintf("pool task failed for %s: %v", e.ComputeFP, e.Cause)
}

func (e *PoolTaskFailed) Unwrap() error { return e.Cause }

func NewPoolTaskFailed(computeFP string, cause error) error {
	return &PoolTaskFailed{ComputeFP: computeFP, Cause: cause}
}

// ChannelDead marks a query whose output channel's weak handle was
// collected. It is never surfaced to a caller; it only drives silent
// cancellation on the next idle tick.
var ErrChannelDead = errors.New("client output channel is dead")

func IsUserInput(err error) bool {
	var e *UserInputError
	return errors.As(err, &e)
}

func IsSchedulerCrashed(err error) bool {
	var e *SchedulerCrashed
	return errors.As(err, &e)
}

func IsPoolTaskFailed(err error) bool {
	var e *PoolTaskFailed
	return errors.As(err, &e)
}
