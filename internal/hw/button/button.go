// Package button turns a GPIO line into debounced press events.
package button

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/hw/gpio"
)

// Button watches a single active-low line (internal pull-up enabled) and
// reports a press once the line has been stable low for the debounce window.
// Contact glitches shorter than the window never surface. The line must
// return high before another press can register.
type Button struct {
	gpio         gpio.Driver
	pin          int
	pollInterval time.Duration
	debounce     time.Duration
	presses      chan time.Time
}

// New configures the pin and returns a Button. Call Run to start polling.
func New(g gpio.Driver, pin int, pollInterval, debounce time.Duration) (*Button, error) {
	if err := g.SetupPin(pin, gpio.InputPullUp); err != nil {
		return nil, fmt.Errorf("setup button pin %d: %w", pin, err)
	}
	return &Button{
		gpio:         g,
		pin:          pin,
		pollInterval: pollInterval,
		debounce:     debounce,
		presses:      make(chan time.Time, 1),
	}, nil
}

// Presses returns the channel on which press timestamps are delivered.
// The channel has a one-slot buffer; presses arriving while a previous
// one is still unconsumed are dropped, not queued.
func (b *Button) Presses() <-chan time.Time {
	return b.presses
}

// Run polls the line until ctx is cancelled.
func (b *Button) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	var lowSince time.Time
	armed := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			level, err := b.gpio.ReadPin(b.pin)
			if err != nil {
				log.Warn().Err(err).Int("pin", b.pin).Msg("button read failed")
				continue
			}
			if level == gpio.High {
				// Released; re-arm for the next press.
				lowSince = time.Time{}
				armed = true
				continue
			}
			if lowSince.IsZero() {
				lowSince = now
			}
			if armed && now.Sub(lowSince) >= b.debounce {
				armed = false
				select {
				case b.presses <- now:
					log.Debug().Int("pin", b.pin).Msg("button press")
				default:
					log.Debug().Int("pin", b.pin).Msg("button press dropped (previous press unconsumed)")
				}
			}
		}
	}
}
