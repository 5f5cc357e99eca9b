package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ButtonConfig describes the physical trigger button.
// The line is wired active-low with the internal pull-up enabled.
type ButtonConfig struct {
	Pin            int `yaml:"pin"`              // BCM pin of the button line
	PollIntervalMs int `yaml:"poll_interval_ms"` // line sampling period
	DebounceMs     int `yaml:"debounce_ms"`      // line must be stable low this long to count as a press
}

// DisplayConfig describes how to reach the LCD.
// Type selects a concrete implementation ("server" spawns the display
// server subprocess, "none" disables the display entirely).
type DisplayConfig struct {
	Type             string `yaml:"type"`
	Command          string `yaml:"command"`            // e.g. "python3 /opt/photobox/display_server.py"
	CommandTimeoutMs int    `yaml:"command_timeout_ms"` // per draw command; display is best-effort
}

// CameraConfig describes how captures are produced.
// Type selects a concrete implementation ("command" shells out to an
// imaging tool, "remote_shutter_gpio" pulses DSLR remote-trigger lines).
type CameraConfig struct {
	Type           string `yaml:"type"`
	Command        string `yaml:"command"`    // imaging tool template, %s replaced by the output path
	OutputDir      string `yaml:"output_dir"` // where captured images land
	FocusPin       int    `yaml:"focus_pin"`
	ShutterPin     int    `yaml:"shutter_pin"`
	FocusDelayMs   int    `yaml:"focus_delay_ms"`   // autofocus delay (ms)
	ShutterDelayMs int    `yaml:"shutter_delay_ms"` // shutter hold time (ms)
}

// QuotaConfig bounds how many shots may be taken per calendar day.
type QuotaConfig struct {
	DailyLimit int    `yaml:"daily_limit"`
	StateFile  string `yaml:"state_file"` // persisted {date, shots_remaining} record
}

// SequenceConfig times the capture sequence phases.
type SequenceConfig struct {
	CountdownFrom       int  `yaml:"countdown_from"`        // countdown starts at this number
	CountdownIntervalMs int  `yaml:"countdown_interval_ms"` // cadence between countdown numbers
	SafetyTimeoutMs     int  `yaml:"safety_timeout_ms"`     // max wait for the capture, measured from accept
	SettleDelayMs       int  `yaml:"settle_delay_ms"`       // pause after the result before returning to idle
	NotifyOnFailure     bool `yaml:"notify_on_failure"`     // broadcast a notification for failed captures too
	ReleaseBeforeSettle bool `yaml:"release_before_settle"` // release the busy flag before the settle delay
}

// AnimationConfig times the idle flicker animation.
type AnimationConfig struct {
	TickIntervalMs     int `yaml:"tick_interval_ms"`
	PointCount         int `yaml:"point_count"`
	RelocateEveryTicks int `yaml:"relocate_every_ticks"` // every N ticks, a fraction of points moves
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	LogLevel string `yaml:"log_level"` // zerolog level: trace, debug, info, warn, error
	MockGPIO bool   `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Button    ButtonConfig    `yaml:"button"`
	Display   DisplayConfig   `yaml:"display"`
	Camera    CameraConfig    `yaml:"camera"`
	Quota     QuotaConfig     `yaml:"quota"`
	Sequence  SequenceConfig  `yaml:"sequence"`
	Animation AnimationConfig `yaml:"animation"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Camera.Type == "" {
		return nil, fmt.Errorf("camera.type is required")
	}
	switch cfg.Camera.Type {
	case "command":
		if cfg.Camera.Command == "" {
			return nil, fmt.Errorf("camera.command is required for camera.type=command")
		}
	case "remote_shutter_gpio":
		if cfg.Camera.FocusPin <= 0 || cfg.Camera.ShutterPin <= 0 {
			return nil, fmt.Errorf("camera.focus_pin and camera.shutter_pin are required for camera.type=remote_shutter_gpio")
		}
	default:
		return nil, fmt.Errorf("unsupported camera type: %s", cfg.Camera.Type)
	}
	if cfg.Display.Type == "" {
		cfg.Display.Type = "none"
	}
	if cfg.Display.Type == "server" && cfg.Display.Command == "" {
		return nil, fmt.Errorf("display.command is required for display.type=server")
	}
	if cfg.Button.Pin < 0 || cfg.Button.Pin > 27 {
		return nil, fmt.Errorf("button.pin must be a BCM pin (0-27), got %d", cfg.Button.Pin)
	}
	if cfg.Quota.DailyLimit < 0 {
		return nil, fmt.Errorf("quota.daily_limit must be >= 0, got %d", cfg.Quota.DailyLimit)
	}

	// Defaults
	if cfg.Button.PollIntervalMs <= 0 {
		cfg.Button.PollIntervalMs = 10
	}
	if cfg.Button.DebounceMs <= 0 {
		cfg.Button.DebounceMs = 30
	}
	if cfg.Display.CommandTimeoutMs <= 0 {
		cfg.Display.CommandTimeoutMs = 500
	}
	if cfg.Camera.OutputDir == "" {
		cfg.Camera.OutputDir = "photos"
	}
	if cfg.Camera.FocusDelayMs <= 0 {
		cfg.Camera.FocusDelayMs = 500 // 500ms for autofocus
	}
	if cfg.Camera.ShutterDelayMs <= 0 {
		cfg.Camera.ShutterDelayMs = 200 // 200ms shutter hold
	}
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 10
	}
	if cfg.Quota.StateFile == "" {
		cfg.Quota.StateFile = "quota.json"
	}
	if cfg.Sequence.CountdownFrom <= 0 {
		cfg.Sequence.CountdownFrom = 3
	}
	if cfg.Sequence.CountdownIntervalMs <= 0 {
		cfg.Sequence.CountdownIntervalMs = 1000
	}
	if cfg.Sequence.SafetyTimeoutMs <= 0 {
		cfg.Sequence.SafetyTimeoutMs = 30000
	}
	if cfg.Sequence.SettleDelayMs <= 0 {
		cfg.Sequence.SettleDelayMs = 800
	}
	if cfg.Animation.TickIntervalMs <= 0 {
		cfg.Animation.TickIntervalMs = 200 // 5 Hz
	}
	if cfg.Animation.PointCount <= 0 {
		cfg.Animation.PointCount = 6
	}
	if cfg.Animation.RelocateEveryTicks <= 0 {
		cfg.Animation.RelocateEveryTicks = 15 // every 3s at 5 Hz
	}
	if cfg.Defaults.LogLevel == "" {
		cfg.Defaults.LogLevel = "info"
	}

	if cfg.Sequence.SafetyTimeoutMs <= cfg.Sequence.CountdownFrom*cfg.Sequence.CountdownIntervalMs {
		return nil, fmt.Errorf("sequence.safety_timeout_ms (%d) must exceed the countdown duration (%d ms)",
			cfg.Sequence.SafetyTimeoutMs, cfg.Sequence.CountdownFrom*cfg.Sequence.CountdownIntervalMs)
	}

	return &cfg, nil
}

// PollInterval returns the button line sampling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Button.PollIntervalMs) * time.Millisecond
}

// Debounce returns how long the button line must be stable to register a press.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Button.DebounceMs) * time.Millisecond
}

// DisplayCommandTimeout returns the per-command display deadline.
func (c *Config) DisplayCommandTimeout() time.Duration {
	return time.Duration(c.Display.CommandTimeoutMs) * time.Millisecond
}

// FocusDelay returns the autofocus delay duration.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Camera.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Camera.ShutterDelayMs) * time.Millisecond
}

// CountdownInterval returns the cadence between countdown numbers.
func (c *Config) CountdownInterval() time.Duration {
	return time.Duration(c.Sequence.CountdownIntervalMs) * time.Millisecond
}

// SafetyTimeout returns the maximum wait for a capture, measured from accept.
func (c *Config) SafetyTimeout() time.Duration {
	return time.Duration(c.Sequence.SafetyTimeoutMs) * time.Millisecond
}

// SettleDelay returns the pause after a result before returning to idle.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Sequence.SettleDelayMs) * time.Millisecond
}

// AnimationTick returns the idle animation tick period.
func (c *Config) AnimationTick() time.Duration {
	return time.Duration(c.Animation.TickIntervalMs) * time.Millisecond
}
