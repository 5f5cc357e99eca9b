package gpio

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates how a GPIO line is configured.
type PinMode int

const (
	Input PinMode = iota
	InputPullUp
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// MockDriver is a test implementation that records writes and serves
// scripted read levels. Used for development on PC and in tests.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level   // last written level per pin
	reads  map[int][]Level // scripted read sequence per pin; last value repeats
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		log.Info().Msg("using mock GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels: make(map[int]Level),
		reads:  make(map[int][]Level),
	}
}

// ScriptReads queues the levels a pin will report, in order.
// Once the script is exhausted the last level repeats.
func (m *MockDriver) ScriptReads(pin int, levels ...Level) {
	m.mu.Lock()
	m.reads[pin] = append(m.reads[pin], levels...)
	m.mu.Unlock()
}

// Written returns the last level written to a pin.
func (m *MockDriver) Written(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	log.Trace().Int("pin", pin).Int("mode", int(mode)).Msg("gpio setup")
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	log.Trace().Int("pin", pin).Bool("level", bool(level)).Msg("gpio write")
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	script := m.reads[pin]
	switch len(script) {
	case 0:
		return High, nil // pulled-up line at rest
	case 1:
		return script[0], nil
	default:
		lvl := script[0]
		m.reads[pin] = script[1:]
		return lvl, nil
	}
}

func (m *MockDriver) Close() error {
	log.Trace().Msg("gpio close (mock)")
	return nil
}
