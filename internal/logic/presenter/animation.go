package presenter

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/hw/display"
)

// The status text occupies a horizontal band across the middle of the
// panel. Decorative points are confined to the strips above and below
// it so the animation can never touch phase content.
const (
	statusBandTop    = 31
	statusBandBottom = 97
)

type point struct {
	x, y int
	lit  bool
}

// inSafeRegion reports whether a coordinate lies outside the reserved
// status band.
func inSafeRegion(x, y int) bool {
	if x < 0 || x >= display.Width || y < 0 || y >= display.Height {
		return false
	}
	return y < statusBandTop || y > statusBandBottom
}

func (p *Presenter) randomSafePoint() point {
	var y int
	if p.rng.Intn(2) == 0 {
		y = p.rng.Intn(statusBandTop) // top strip
	} else {
		y = statusBandBottom + 1 + p.rng.Intn(display.Height-statusBandBottom-1) // bottom strip
	}
	return point{x: p.rng.Intn(display.Width), y: y}
}

// startAnimation seeds the point set and launches the tick loop. No-op
// when already running or when the animation is configured off.
func (p *Presenter) startAnimation() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.cfg.PointCount <= 0 || p.cfg.Tick <= 0 {
		return
	}

	p.points = make([]point, p.cfg.PointCount)
	for i := range p.points {
		p.points[i] = p.randomSafePoint()
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true
	go p.animate(p.stop, p.done)
}

// StopAnimation halts the tick loop and blocks until every lit point
// has been erased. Safe to call when the animation is not running, and
// safe under concurrent callers: only the first closes the stop
// channel, the rest just wait for the erase to finish.
func (p *Presenter) StopAnimation() {
	p.mu.Lock()
	if p.running {
		p.running = false
		close(p.stop)
	}
	done := p.done
	p.mu.Unlock()

	if done != nil {
		<-done
	}
}

// animate owns p.points for its lifetime; the lifecycle methods only
// touch them before start and after done is closed.
func (p *Presenter) animate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-stop:
			p.eraseAll()
			return
		case <-ticker.C:
			ticks++
			p.step(ticks)
		}
	}
}

// step advances the flicker animation one tick: erase what was lit,
// occasionally relocate a fraction of the points, then re-light each
// point with probability one half.
func (p *Presenter) step(ticks int) {
	for i := range p.points {
		if p.points[i].lit {
			p.setPixel(p.points[i].x, p.points[i].y, false)
			p.points[i].lit = false
		}
	}

	if p.cfg.RelocateEvery > 0 && ticks%p.cfg.RelocateEvery == 0 {
		moved := len(p.points) / 5
		if moved == 0 {
			moved = 1
		}
		for n := 0; n < moved; n++ {
			p.points[p.rng.Intn(len(p.points))] = p.randomSafePoint()
		}
	}

	for i := range p.points {
		if p.rng.Intn(2) == 0 {
			p.points[i].lit = true
			p.setPixel(p.points[i].x, p.points[i].y, true)
		}
	}
}

func (p *Presenter) eraseAll() {
	for i := range p.points {
		if p.points[i].lit {
			p.setPixel(p.points[i].x, p.points[i].y, false)
			p.points[i].lit = false
		}
	}
}

func (p *Presenter) setPixel(x, y int, on bool) {
	if err := p.drv.SetPixel(x, y, on); err != nil {
		log.Warn().Err(err).Int("x", x).Int("y", y).Msg("animation pixel failed")
	}
}
