package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lsdecision/decision/state"
)

// Env is the single-threaded event loop's handle: every mutation of a
// Decision instance's state happens by a closure handed to Dispatch, never
// by a caller touching fields directly. Adapted from the teacher's
// state.Env/scheduler.go, generalized from *state.State to *Decision.
type Env struct {
	Context context.Context
	Cancel  context.CancelCauseFunc

	DispatchChannel chan func(*Decision) error

	Log *slog.Logger
}

// Dispatch enqueues fun to run on the event loop without waiting for it to
// complete.
func (e *Env) Dispatch(fun func(*Decision) error) {
	defer func() {
		if r := recover(); r != nil {
			e.Cancel(fmt.Errorf("panic dispatching: %v", r))
		}
	}()
	e.DispatchChannel <- fun
}

// DispatchWait enqueues fun and blocks until it has run (or the loop shuts
// down), returning its result. This is how introspection RPCs and other
// external requests cross onto the event loop without it ever blocking on
// them.
func (e *Env) DispatchWait(fun func(*Decision) (any, error)) (any, error) {
	ret := make(chan state.Pair[any, error], 1)
	e.DispatchChannel <- func(d *Decision) error {
		res, err := fun(d)
		ret <- state.Pair[any, error]{V1: res, V2: err}
		// the error belongs to the waiting caller, not the loop
		return nil
	}
	select {
	case res := <-ret:
		return res.V1, res.V2
	case <-e.Context.Done():
		return nil, e.Context.Err()
	}
}

// ScheduleTask dispatches fun onto the loop once, after delay.
func (e *Env) ScheduleTask(fun func(*Decision) error, delay time.Duration) {
	time.AfterFunc(delay, func() {
		e.Dispatch(fun)
	})
}

func (e *Env) repeatedTask(fun func(*Decision) error, delay time.Duration) {
	for e.Context.Err() == nil {
		e.Dispatch(fun)
		time.Sleep(delay)
	}
}

// RepeatTask dispatches fun onto the loop every delay, until the loop's
// context is done. Used for the ordered-FIB hold-timer tick.
func (e *Env) RepeatTask(fun func(*Decision) error, delay time.Duration) {
	go e.repeatedTask(fun, delay)
}
