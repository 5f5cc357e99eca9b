// Package presenter renders capture phases on the kiosk LCD and runs
// the decorative idle animation.
package presenter

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/hw/display"
)

// Config times and sizes the idle animation.
type Config struct {
	Tick          time.Duration // animation tick period
	PointCount    int           // decorative points kept alive
	RelocateEvery int           // every N ticks ~20% of points move
}

// Presenter owns the display. Phase renders and the idle animation
// never overlap: every phase render first stops the animation and waits
// for its points to be erased. The animation runs only while the kiosk
// is idle.
type Presenter struct {
	drv display.Driver
	cfg Config
	rng *rand.Rand

	mu      sync.Mutex // guards the animation lifecycle
	running bool
	stop    chan struct{}
	done    chan struct{}
	points  []point
}

// New creates a presenter. src seeds the animation's randomness so
// tests can make it deterministic.
func New(drv display.Driver, cfg Config, src rand.Source) *Presenter {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Presenter{
		drv: drv,
		cfg: cfg,
		rng: rand.New(src),
	}
}

// ShowIdle renders the ready screen with the remaining quota and
// resumes the idle animation.
func (p *Presenter) ShowIdle(remaining int) {
	p.StopAnimation()
	if remaining > 0 {
		p.text(fmt.Sprintf("Ready: %d", remaining), display.SizeMedium, "white")
	} else {
		p.text("No shots left", display.SizeSmall, "red")
	}
	p.startAnimation()
}

// ShowCountdown renders the big countdown number.
func (p *Presenter) ShowCountdown(n int) {
	p.StopAnimation()
	if err := p.drv.ShowNumber(n, display.SizeLarge, "yellow"); err != nil {
		log.Warn().Err(err).Int("n", n).Msg("countdown render failed")
	}
}

// ShowProcessing renders the waiting screen shown while the capture
// settles.
func (p *Presenter) ShowProcessing() {
	p.StopAnimation()
	p.text("Smile!", display.SizeMedium, "cyan")
}

// ShowResult renders the capture outcome.
func (p *Presenter) ShowResult(ok bool) {
	p.StopAnimation()
	if ok {
		p.text("Nice!", display.SizeMedium, "green")
	} else {
		p.text("Failed", display.SizeMedium, "red")
	}
}

// ShowLimitReached renders the transient quota-exhausted message. The
// caller reverts to ShowIdle after its settle delay.
func (p *Presenter) ShowLimitReached() {
	p.StopAnimation()
	p.text("Daily limit!", display.SizeSmall, "red")
}

// Close stops the animation and releases the display.
func (p *Presenter) Close() error {
	p.StopAnimation()
	if err := p.drv.Clear(); err != nil {
		log.Warn().Err(err).Msg("display clear failed")
	}
	return p.drv.Close()
}

func (p *Presenter) text(s string, size display.Size, color string) {
	if err := p.drv.ShowText(s, size, color); err != nil {
		log.Warn().Err(err).Str("text", s).Msg("phase render failed")
	}
}
