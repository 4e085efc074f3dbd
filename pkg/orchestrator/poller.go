// Package orchestrator holds the pieces EvalOrchestrator, DocOrchestrator,
// and ToolMetaOrchestrator all need in common: a bounded ticker-driven poll
// loop and the JSON-envelope extraction used to pull structured output out
// of free-form model text.
package orchestrator

import (
	"context"
	"time"

	"github.com/taskforge/platform/pkg/apperr"
)

// Poller runs fn on a fixed interval until it reports done, the context is
// cancelled, or MaxIterations ticks elapse without either — the shared
// bounded-polling shape behind spec.md §4.9-§4.11, grounded on the
// teacher's ticker-based cleanup.Service.run loop, generalized from "run
// forever on an interval" to "poll until terminal or N iterations".
type Poller struct {
	Interval      time.Duration
	MaxIterations int
}

// Run ticks at Interval, calling fn each time. fn returns done=true to stop
// successfully, or an error to abort the poll entirely. If MaxIterations
// ticks elapse without fn reporting done, Run returns apperr.Timeout.
func (p Poller) Run(ctx context.Context, fn func(ctx context.Context) (done bool, err error)) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for i := 0; i < p.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return apperr.Timeout
}
