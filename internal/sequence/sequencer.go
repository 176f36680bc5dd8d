// internal/sequence/sequencer.go
package sequence

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxSettleSteps bounds how many items a single Advance may run through.
const DefaultMaxSettleSteps = 64

// Sequencer owns the current item of one game and drives it through its lifecycle.
// It never picks the next item: an item's End hands the successor to its game, which calls SetCurrent.
// A Sequencer is not safe for concurrent use; the owning game serializes access.
type Sequencer struct {
	clock   Clock
	log     *logrus.Entry
	current Item
	pending bool // current item has not executed yet

	MaxSettleSteps int
}

// NewSequencer builds an idle Sequencer.
func NewSequencer(clock Clock, log *logrus.Entry) *Sequencer {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sequencer{
		clock:          clock,
		log:            log,
		MaxSettleSteps: DefaultMaxSettleSteps,
	}
}

// Current returns the current item, or nil when idle.
func (s *Sequencer) Current() Item {
	return s.current
}

// Pending reports whether the current item is still waiting to execute.
func (s *Sequencer) Pending() bool {
	return s.current != nil && s.pending
}

// Now reads the Sequencer's clock.
func (s *Sequencer) Now() time.Time {
	return s.clock.Now()
}

// SetCurrent supersedes the current item with item. Execution waits for the next Advance.
func (s *Sequencer) SetCurrent(item Item) {
	if item == s.current {
		return
	}
	if prev := s.current; prev != nil {
		prev.OnBecameNotCurrent()
	}
	s.current = item
	s.pending = item != nil
	if item != nil {
		item.OnBecameCurrent(s.clock.Now())
	}
}

// Clear drops the current item, running its exit callback.
func (s *Sequencer) Clear() {
	s.SetCurrent(nil)
}

// Advance executes the current item once its window elapsed and, for items that end on their own,
// ends them and continues with the successor. It stops at the first item that is still waiting
// or at the first step that does not report ok; that result is logged and returned.
func (s *Sequencer) Advance() Result {
	for step := 0; step < s.MaxSettleSteps; step++ {
		cur := s.current
		if cur == nil || !s.pending {
			return Done
		}
		now := s.clock.Now()
		if !cur.Timing().Due(now) {
			return Done
		}

		s.pending = false
		res := cur.TryExecuteEffect(now)
		if !res.IsOK() {
			s.report("execute", cur, res)
			return res
		}

		ender, ok := cur.(Ender)
		if !ok || !ender.EndsAfterExecution() {
			return Done
		}
		if res := ender.End(); !res.IsOK() {
			s.report("end", cur, res)
			return res
		}
		if s.current == cur {
			// ended without handing over a successor
			return Done
		}
	}
	s.log.Warnf("Sequencer: stopped after %d steps without settling on a waiting item", s.MaxSettleSteps)
	return Done
}

func (s *Sequencer) report(step string, item Item, res Result) {
	entry := s.log.WithFields(logrus.Fields{
		"step":   step,
		"item":   describe(item),
		"status": res.Status.String(),
	})
	switch res.Status {
	case StatusDetached:
		entry.Warnf("Sequencer: %s", res.Message)
	default:
		entry.Debugf("Sequencer: %s", res.Message)
	}
}

func describe(item Item) string {
	if st, ok := item.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", item)
}
