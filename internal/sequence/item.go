// internal/sequence/item.go
package sequence

import (
	"fmt"
	"time"
)

// Status classifies the outcome of a lifecycle step.
type Status int

const (
	StatusOK       Status = iota // step ran
	StatusDetached               // the item's owning game is gone
	StatusStale                  // the step already ran for this item
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDetached:
		return "detached"
	case StatusStale:
		return "stale"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is returned by lifecycle steps instead of raising.
type Result struct {
	Status  Status
	Message string
}

// Done is the successful Result.
var Done = Result{Status: StatusOK}

// Detached builds a Result for an item that lost its owner.
func Detached(msg string) Result {
	return Result{Status: StatusDetached, Message: msg}
}

// Stale builds a Result for a step that was already taken.
func Stale(msg string) Result {
	return Result{Status: StatusStale, Message: msg}
}

// IsOK reports whether the step ran.
func (r Result) IsOK() bool {
	return r.Status == StatusOK
}

func (r Result) String() string {
	if r.Message == "" {
		return r.Status.String()
	}
	return r.Status.String() + ": " + r.Message
}

// Timing holds the response window of a sequence item.
type Timing struct {
	// ResponseTimeout is the delay between becoming current and executing. Zero means immediate.
	ResponseTimeout time.Duration
	// ResponseTime is the absolute activation instant. Zero when ResponseTimeout is zero.
	ResponseTime time.Time
	// ResponseTimerMod shifts the window; the resulting window never goes below zero.
	ResponseTimerMod time.Duration
	// HasBegunExecution is set once the effect ran.
	HasBegunExecution bool
}

// Arm computes ResponseTime relative to now.
func (t *Timing) Arm(now time.Time) {
	if t.ResponseTimeout <= 0 {
		t.ResponseTime = time.Time{}
		return
	}
	window := t.ResponseTimeout + t.ResponseTimerMod
	if window < 0 {
		window = 0
	}
	t.ResponseTime = now.Add(window)
}

// Delayed reports whether the item waits out a response window.
func (t *Timing) Delayed() bool {
	return t.ResponseTimeout > 0
}

// Due reports whether the window, if any, has elapsed at now.
func (t *Timing) Due(now time.Time) bool {
	return !t.Delayed() || !now.Before(t.ResponseTime)
}

// Remaining is the time left in the window at now, never negative.
func (t *Timing) Remaining(now time.Time) time.Duration {
	if t.Due(now) {
		return 0
	}
	return t.ResponseTime.Sub(now)
}

// Item is anything the Sequencer can make current.
type Item interface {
	Timing() *Timing
	// OnBecameCurrent is called exactly once, when the Sequencer selects the item.
	OnBecameCurrent(now time.Time)
	// TryExecuteEffect is called once the response window has elapsed.
	TryExecuteEffect(now time.Time) Result
	// OnBecameNotCurrent is called when the item is superseded.
	OnBecameNotCurrent()
}

// Ender is implemented by items that finish on their own after executing.
type Ender interface {
	Item
	EndsAfterExecution() bool
	End() Result
}

// Base carries the default lifecycle. Concrete items embed it and override what they need.
type Base struct {
	timing Timing
}

// NewBase returns a Base with the given response timeout and modifier.
func NewBase(timeout, mod time.Duration) Base {
	return Base{timing: Timing{ResponseTimeout: timeout, ResponseTimerMod: mod}}
}

func (b *Base) Timing() *Timing {
	return &b.timing
}

// OnBecameCurrent arms the response window.
func (b *Base) OnBecameCurrent(now time.Time) {
	b.timing.Arm(now)
}

// BeginExecution marks the item executed. It returns false if it already was.
func (b *Base) BeginExecution() bool {
	if b.timing.HasBegunExecution {
		return false
	}
	b.timing.HasBegunExecution = true
	return true
}

func (b *Base) OnBecameNotCurrent() {}
