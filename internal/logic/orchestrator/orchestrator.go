// Package orchestrator drives the capture state machine:
// Idle -> Countdown -> Processing -> Result -> (settle) -> Idle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/hw/camera"
	"github.com/cjeanneret/photobox/internal/logic/quota"
	"github.com/cjeanneret/photobox/internal/metrics"
)

// Rejection and failure sentinels, mapped to HTTP codes by the web layer.
var (
	ErrBusy          = errors.New("capture already in progress")
	ErrLimitReached  = errors.New("daily limit reached")
	ErrCaptureFailed = errors.New("capture failed")
)

// Source identifies where a trigger came from.
type Source string

const (
	SourceButton Source = "button"
	SourceHTTP   Source = "http"
)

// Display is the phase-rendering surface the orchestrator drives.
// Implemented by presenter.Presenter; every call is best-effort.
type Display interface {
	ShowIdle(remaining int)
	ShowCountdown(n int)
	ShowProcessing()
	ShowResult(ok bool)
	ShowLimitReached()
}

// Notifier receives completed-capture notifications for fan-out.
type Notifier interface {
	Captured(filename string)
}

// Config times the sequence phases.
type Config struct {
	CountdownFrom       int
	CountdownInterval   time.Duration
	SafetyTimeout       time.Duration // measured from accept, must exceed the countdown
	SettleDelay         time.Duration
	NotifyOnFailure     bool // compat switch: broadcast failed captures too
	ReleaseBeforeSettle bool // compat switch: release busy before the settle delay
}

// Outcome is returned to the HTTP layer on success.
type Outcome struct {
	Filename string
	Saved    bool // false when the image lands off-board (DSLR card)
}

// Orchestrator owns the busy flag, the quota record and the display: the
// one explicitly-constructed home for the kiosk's mutable state. The
// external collaborators are injected so tests can substitute fakes.
type Orchestrator struct {
	cfg      Config
	camera   camera.Camera
	display  Display
	quota    *quota.Store
	notifier Notifier

	// ctx bounds in-flight captures to the process lifetime. An accepted
	// capture cannot be aborted by the requester; the only time bound is
	// the safety timeout, which stops the wait, not the capture.
	ctx context.Context

	busy        atomic.Bool
	limitActive atomic.Bool   // busy is held for a limit transient, not a capture
	gen         atomic.Uint64 // sequence tag, identifies stale capture results

	transients sync.WaitGroup
}

type captureResult struct {
	filename string
	err      error
}

// New wires the orchestrator. ctx is the process lifetime context.
func New(ctx context.Context, cfg Config, cam camera.Camera, disp Display, q *quota.Store, n Notifier) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		camera:   cam,
		display:  disp,
		quota:    q,
		notifier: n,
		ctx:      ctx,
	}
}

// Busy reports whether a sequence is currently running.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// TryCapture is the single entry point for both trigger sources.
// Acceptance is one atomic check-and-set on the busy flag: a trigger
// arriving while a sequence runs is rejected with ErrBusy and touches
// nothing. Quota exhaustion rejects with ErrLimitReached before the
// camera is ever invoked.
func (o *Orchestrator) TryCapture(source Source) (Outcome, error) {
	if !o.busy.CompareAndSwap(false, true) {
		// While the limit-reached message is on screen the flag is held
		// for rendering only; the true reason for rejecting is still the
		// exhausted quota.
		if o.limitActive.Load() {
			metrics.RejectionsTotal.WithLabelValues("limit").Inc()
			log.Info().Str("source", string(source)).Msg("trigger rejected: daily limit reached")
			return Outcome{}, ErrLimitReached
		}
		metrics.RejectionsTotal.WithLabelValues("busy").Inc()
		log.Debug().Str("source", string(source)).Msg("trigger rejected: busy")
		return Outcome{}, ErrBusy
	}

	if !o.quota.CanCapture() {
		metrics.RejectionsTotal.WithLabelValues("limit").Inc()
		log.Info().Str("source", string(source)).Msg("trigger rejected: daily limit reached")
		// Busy stays held while the transient message is on screen so a
		// concurrent trigger cannot interleave renders; the caller gets
		// its rejection immediately.
		o.limitActive.Store(true)
		o.transients.Add(1)
		go o.limitTransient()
		return Outcome{}, ErrLimitReached
	}

	return o.run(source)
}

// Wait blocks until any in-flight limit transient has finished its
// renders. Called on shutdown, before the display closes.
func (o *Orchestrator) Wait() {
	o.transients.Wait()
}

func (o *Orchestrator) limitTransient() {
	defer o.transients.Done()
	o.display.ShowLimitReached()
	time.Sleep(o.cfg.SettleDelay)
	o.display.ShowIdle(o.quota.Remaining())
	o.limitActive.Store(false)
	o.busy.Store(false)
}

// run executes one accepted request through the full phase sequence.
// The capture starts immediately and overlaps the fixed-length countdown
// and processing phases; its actual completion is only consulted once
// those have elapsed.
func (o *Orchestrator) run(source Source) (Outcome, error) {
	gen := o.gen.Add(1)
	start := time.Now()
	log.Info().Str("source", string(source)).Uint64("seq", gen).Msg("capture accepted")

	results := make(chan captureResult, 1)
	go o.capture(gen, results)

	deadline := time.NewTimer(o.cfg.SafetyTimeout)
	defer deadline.Stop()

	for n := o.cfg.CountdownFrom; n >= 1; n-- {
		o.display.ShowCountdown(n)
		time.Sleep(o.cfg.CountdownInterval)
	}

	o.display.ShowProcessing()

	var res captureResult
	timedOut := false
	select {
	case res = <-results:
	case <-deadline.C:
		timedOut = true
		// The capture may still be running; whatever it eventually
		// produces is stale and must not re-enter the machine.
		go drainStale(gen, results)
	}

	var outcome Outcome
	var err error
	switch {
	case timedOut:
		err = fmt.Errorf("%w: no result within %v", ErrCaptureFailed, o.cfg.SafetyTimeout)
		metrics.CapturesTotal.WithLabelValues("timeout").Inc()
		log.Error().Uint64("seq", gen).Dur("timeout", o.cfg.SafetyTimeout).Msg("capture timed out")
	case res.err != nil:
		err = fmt.Errorf("%w: %v", ErrCaptureFailed, res.err)
		metrics.CapturesTotal.WithLabelValues("failed").Inc()
		log.Error().Err(res.err).Uint64("seq", gen).Msg("capture failed")
	default:
		o.quota.Decrement()
		metrics.CapturesTotal.WithLabelValues("ok").Inc()
		metrics.CaptureDuration.Observe(time.Since(start).Seconds())
		outcome = Outcome{Filename: res.filename, Saved: res.filename != ""}
		log.Info().Str("file", res.filename).Uint64("seq", gen).Int("remaining", o.quota.Remaining()).Msg("capture succeeded")
	}

	o.display.ShowResult(err == nil)
	if err == nil {
		o.notifier.Captured(res.filename)
	} else if o.cfg.NotifyOnFailure {
		o.notifier.Captured("")
	}

	if o.cfg.ReleaseBeforeSettle {
		o.busy.Store(false)
	}
	time.Sleep(o.cfg.SettleDelay)
	o.display.ShowIdle(o.quota.Remaining())
	if !o.cfg.ReleaseBeforeSettle {
		// Idle is fully restored before the flag drops, so a retrigger
		// cannot race the restoration.
		o.busy.Store(false)
	}

	return outcome, err
}

// capture runs the external capture and delivers exactly one result.
// Panics are folded into a failed result rather than taking the process
// down.
func (o *Orchestrator) capture(gen uint64, results chan<- captureResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint64("seq", gen).Msg("capture panicked")
			results <- captureResult{err: fmt.Errorf("capture panic: %v", r)}
		}
	}()

	filename, err := o.camera.Capture(o.ctx)
	results <- captureResult{filename: filename, err: err}
}

// drainStale consumes a result that arrived after the safety timeout
// already produced a failure. It is logged and dropped; it never
// re-renders a phase or broadcasts a notification.
func drainStale(gen uint64, results <-chan captureResult) {
	res := <-results
	if res.err != nil {
		log.Warn().Err(res.err).Uint64("seq", gen).Msg("stale capture failure discarded")
		return
	}
	log.Warn().Str("file", res.filename).Uint64("seq", gen).Msg("stale capture result discarded")
}
