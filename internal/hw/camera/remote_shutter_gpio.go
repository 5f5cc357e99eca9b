package camera

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/hw/gpio"
)

// RemoteShutterGPIO triggers a tethered DSLR through its 3-pin remote
// connector (GND to Pi ground, FOCUS and SHUTTER lines active LOW):
//
// 1. FOCUS to LOW (activates autofocus)
// 2. Wait for autofocus to complete
// 3. SHUTTER to LOW (triggers the shot)
// 4. Hold for a moment
// 5. Set SHUTTER and FOCUS back to HIGH
//
// The image lands on the camera's own card, so Capture returns "" for
// the filename.
type RemoteShutterGPIO struct {
	gpio         gpio.Driver
	focusPin     int
	shutterPin   int
	focusDelay   time.Duration // time for autofocus
	shutterDelay time.Duration // shutter hold time
}

// NewRemoteShutterGPIO creates a GPIO-controlled remote shutter.
func NewRemoteShutterGPIO(g gpio.Driver, focusPin, shutterPin int, focusDelay, shutterDelay time.Duration) *RemoteShutterGPIO {
	// Configure pins as outputs; lines idle HIGH (inactive).
	_ = g.SetupPin(focusPin, gpio.Output)
	_ = g.SetupPin(shutterPin, gpio.Output)
	_ = g.WritePin(focusPin, gpio.High)
	_ = g.WritePin(shutterPin, gpio.High)

	return &RemoteShutterGPIO{
		gpio:         g,
		focusPin:     focusPin,
		shutterPin:   shutterPin,
		focusDelay:   focusDelay,
		shutterDelay: shutterDelay,
	}
}

// Capture runs the focus/shutter line sequence. ctx cancellation is
// honoured between phases; a started pulse is always released.
func (r *RemoteShutterGPIO) Capture(ctx context.Context) (string, error) {
	log.Debug().Int("focus", r.focusPin).Int("shutter", r.shutterPin).Msg("triggering remote shutter")

	if err := r.gpio.WritePin(r.focusPin, gpio.Low); err != nil {
		return "", err
	}
	if err := r.wait(ctx, r.focusDelay); err != nil {
		_ = r.gpio.WritePin(r.focusPin, gpio.High)
		return "", err
	}

	if err := r.gpio.WritePin(r.shutterPin, gpio.Low); err != nil {
		_ = r.gpio.WritePin(r.focusPin, gpio.High)
		return "", err
	}
	holdErr := r.wait(ctx, r.shutterDelay)

	if err := r.gpio.WritePin(r.shutterPin, gpio.High); err != nil {
		_ = r.gpio.WritePin(r.focusPin, gpio.High)
		return "", err
	}
	if err := r.gpio.WritePin(r.focusPin, gpio.High); err != nil {
		return "", err
	}
	if holdErr != nil {
		return "", holdErr
	}

	log.Debug().Msg("remote shutter released")
	return "", nil
}

func (r *RemoteShutterGPIO) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
