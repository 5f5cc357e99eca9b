// Package trigger funnels hardware and HTTP capture requests into the
// orchestrator.
package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/logic/orchestrator"
)

// Dispatcher merges the two trigger sources. Acceptance itself is the
// orchestrator's atomic busy check; the dispatcher only routes and
// logs. Rejected requests are never queued or retried.
type Dispatcher struct {
	orch *orchestrator.Orchestrator
}

func New(orch *orchestrator.Orchestrator) *Dispatcher {
	return &Dispatcher{orch: orch}
}

// Fire requests a capture on behalf of an HTTP caller and reports the
// outcome synchronously.
func (d *Dispatcher) Fire(source orchestrator.Source) (orchestrator.Outcome, error) {
	return d.orch.TryCapture(source)
}

// RunButtonLoop consumes debounced button presses until ctx is
// cancelled. Button rejections have no one to answer to, so they are
// only logged.
func (d *Dispatcher) RunButtonLoop(ctx context.Context, presses <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-presses:
			if _, err := d.orch.TryCapture(orchestrator.SourceButton); err != nil {
				if errors.Is(err, orchestrator.ErrBusy) || errors.Is(err, orchestrator.ErrLimitReached) {
					log.Debug().Err(err).Msg("button trigger rejected")
					continue
				}
				log.Error().Err(err).Msg("button-triggered capture failed")
			}
		}
	}
}
