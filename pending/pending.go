// Package pending accumulates change notifications between debounced
// recomputations and implements the exponential-backoff arithmetic of the
// debounce timer (§4.4); the timer itself is owned by the decision package.
package pending

import (
	"time"

	"github.com/lsdecision/decision/state"
)

// Updates accumulates static-route deltas received between debounce fires.
// Updates and deletes for the same label squash monotonically: whichever
// arrived later wins, cancelling any earlier entry for that label.
type Updates struct {
	mplsToUpdate map[uint32]state.StaticMplsRoute
	mplsToDelete map[uint32]struct{}
}

func NewUpdates() *Updates {
	return &Updates{
		mplsToUpdate: make(map[uint32]state.StaticMplsRoute),
		mplsToDelete: make(map[uint32]struct{}),
	}
}

// Merge folds one static-route delta batch into the accumulator.
func (u *Updates) Merge(delta state.StaticRouteDelta) {
	for _, r := range delta.MplsRoutesToUpdate {
		delete(u.mplsToDelete, r.TopLabel)
		u.mplsToUpdate[r.TopLabel] = r
	}
	for _, label := range delta.MplsRoutesToDelete {
		delete(u.mplsToUpdate, label)
		u.mplsToDelete[label] = struct{}{}
	}
}

// Drain returns everything accumulated so far and resets the accumulator.
func (u *Updates) Drain() (updates []state.StaticMplsRoute, deletes []uint32) {
	for _, r := range u.mplsToUpdate {
		updates = append(updates, r)
	}
	for label := range u.mplsToDelete {
		deletes = append(deletes, label)
	}
	u.mplsToUpdate = make(map[uint32]state.StaticMplsRoute)
	u.mplsToDelete = make(map[uint32]struct{})
	return
}

// Debouncer implements the exponential-backoff "needs update" timer:
// reportError arms (or re-arms) the timer at an increasing delay up to
// maxDur; reportSuccess disarms it.
type Debouncer struct {
	minDur, maxDur time.Duration
	current        time.Duration
	armed          bool
}

func NewDebouncer(minDur, maxDur time.Duration) *Debouncer {
	return &Debouncer{minDur: minDur, maxDur: maxDur}
}

// ReportError registers a "needs update" notification. It returns the delay
// to (re)arm the timer at and whether the caller should actually schedule
// it — once armed at max backoff, further notifications don't reschedule
// (a timer is already guaranteed to fire).
func (d *Debouncer) ReportError() (delay time.Duration, shouldArm bool) {
	if d.armed && d.AtMaxBackoff() {
		return 0, false
	}
	if d.current == 0 {
		d.current = d.minDur
	} else {
		d.current *= 2
		if d.current > d.maxDur {
			d.current = d.maxDur
		}
	}
	d.armed = true
	return d.current, true
}

// ReportSuccess disarms the timer and resets the backoff after a
// successful publish.
func (d *Debouncer) ReportSuccess() {
	d.armed = false
	d.current = 0
}

func (d *Debouncer) AtMaxBackoff() bool {
	return d.current >= d.maxDur
}

func (d *Debouncer) Armed() bool {
	return d.armed
}

// ColdStart suppresses route publication for one initial window while the
// LSDB converges; changes continue to accumulate into Updates regardless.
type ColdStart struct {
	expired bool
}

func (c *ColdStart) Expire() {
	c.expired = true
}

func (c *ColdStart) Active() bool {
	return !c.expired
}
