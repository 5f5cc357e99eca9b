package presenter

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/photobox/internal/hw/display"
)

// fakeDisplay records draws and tracks lit pixels.
type fakeDisplay struct {
	mu     sync.Mutex
	ops    []string
	pixels map[[2]int]bool
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{pixels: make(map[[2]int]bool)}
}

func (d *fakeDisplay) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, "clear")
	d.pixels = make(map[[2]int]bool)
	return nil
}

func (d *fakeDisplay) ShowText(text string, size display.Size, color string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, "text:"+text)
	return nil
}

func (d *fakeDisplay) ShowNumber(n int, size display.Size, color string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, fmt.Sprintf("number:%d", n))
	return nil
}

func (d *fakeDisplay) SetPixel(x, y int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, fmt.Sprintf("pixel:%d,%d,%v", x, y, on))
	if on {
		d.pixels[[2]int{x, y}] = true
	} else {
		delete(d.pixels, [2]int{x, y})
	}
	return nil
}

func (d *fakeDisplay) Close() error { return nil }

func (d *fakeDisplay) litPixels() [][2]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var lit [][2]int
	for p := range d.pixels {
		lit = append(lit, p)
	}
	return lit
}

func (d *fakeDisplay) opCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ops)
}

func (d *fakeDisplay) lastOp() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.ops) == 0 {
		return ""
	}
	return d.ops[len(d.ops)-1]
}

func testPresenter(d *fakeDisplay) *Presenter {
	return New(d, Config{
		Tick:          2 * time.Millisecond,
		PointCount:    8,
		RelocateEvery: 3,
	}, rand.NewSource(42))
}

func TestShowIdle_StartsAnimation(t *testing.T) {
	d := newFakeDisplay()
	p := testPresenter(d)
	defer p.StopAnimation()

	p.ShowIdle(7)
	assert.Contains(t, d.lastOp(), "text:Ready: 7")

	// Points start flickering within a few ticks.
	require.Eventually(t, func() bool { return len(d.litPixels()) > 0 }, time.Second, time.Millisecond)
}

func TestAnimation_PointsStayInSafeRegions(t *testing.T) {
	d := newFakeDisplay()
	p := testPresenter(d)

	p.ShowIdle(5)
	// Run through several relocation rounds.
	time.Sleep(50 * time.Millisecond)
	p.StopAnimation()

	d.mu.Lock()
	ops := append([]string(nil), d.ops...)
	d.mu.Unlock()

	for _, op := range ops {
		var x, y int
		var on bool
		if _, err := fmt.Sscanf(op, "pixel:%d,%d,%t", &x, &y, &on); err != nil {
			continue
		}
		assert.True(t, inSafeRegion(x, y), "pixel at (%d,%d) inside reserved status band", x, y)
	}
}

func TestStopAnimation_ErasesAllPointsSynchronously(t *testing.T) {
	d := newFakeDisplay()
	p := testPresenter(d)

	p.ShowIdle(5)
	require.Eventually(t, func() bool { return len(d.litPixels()) > 0 }, time.Second, time.Millisecond)

	p.StopAnimation()
	assert.Empty(t, d.litPixels(), "lit points must be gone when StopAnimation returns")

	// No ticks fire after the stop.
	n := d.opCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, d.opCount())
}

func TestPhaseRender_ClearsAnimationFirst(t *testing.T) {
	d := newFakeDisplay()
	p := testPresenter(d)

	p.ShowIdle(5)
	require.Eventually(t, func() bool { return len(d.litPixels()) > 0 }, time.Second, time.Millisecond)

	p.ShowCountdown(3)
	assert.Empty(t, d.litPixels())
	assert.Equal(t, "number:3", d.lastOp())

	p.ShowProcessing()
	assert.Equal(t, "text:Smile!", d.lastOp())

	p.ShowResult(true)
	assert.Equal(t, "text:Nice!", d.lastOp())

	p.ShowResult(false)
	assert.Equal(t, "text:Failed", d.lastOp())

	p.ShowLimitReached()
	assert.Equal(t, "text:Daily limit!", d.lastOp())
}

func TestShowIdle_ZeroRemaining(t *testing.T) {
	d := newFakeDisplay()
	p := New(d, Config{}, rand.NewSource(1)) // animation off
	p.ShowIdle(0)
	assert.Equal(t, "text:No shots left", d.lastOp())
}

func TestStopAnimation_IdempotentWhenNotRunning(t *testing.T) {
	d := newFakeDisplay()
	p := testPresenter(d)
	p.StopAnimation()
	p.StopAnimation()
}

func TestStopAnimation_ConcurrentCallers(t *testing.T) {
	d := newFakeDisplay()
	p := testPresenter(d)

	for i := 0; i < 200; i++ {
		p.ShowIdle(5)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.StopAnimation()
			}()
		}
		wg.Wait()

		assert.Empty(t, d.litPixels(), "iteration %d: lit points after stop", i)
	}
}

func TestInSafeRegion(t *testing.T) {
	assert.True(t, inSafeRegion(0, 0))
	assert.True(t, inSafeRegion(display.Width-1, statusBandTop-1))
	assert.True(t, inSafeRegion(64, statusBandBottom+1))
	assert.False(t, inSafeRegion(64, statusBandTop))
	assert.False(t, inSafeRegion(64, 64))
	assert.False(t, inSafeRegion(64, statusBandBottom))
	assert.False(t, inSafeRegion(-1, 0))
	assert.False(t, inSafeRegion(0, display.Height))
}

func TestRandomSafePoint_AlwaysSafe(t *testing.T) {
	p := New(display.NullDisplay{}, Config{}, rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		pt := p.randomSafePoint()
		require.True(t, inSafeRegion(pt.x, pt.y), "point (%d,%d)", pt.x, pt.y)
	}
}
