package display

// Screen geometry of the supported panel (Waveshare 1.44" ST7735S).
const (
	Width  = 128
	Height = 128
)

// Size selects one of the display server's preloaded fonts.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Driver is the high-level interface for the kiosk's little status LCD.
// Rendering is a UX aid, not load-bearing: callers log failures and
// proceed as if the draw had succeeded.
type Driver interface {
	Clear() error
	ShowText(text string, size Size, color string) error
	ShowNumber(n int, size Size, color string) error
	SetPixel(x, y int, on bool) error
	Close() error
}

// NullDisplay discards every draw call. Used for headless operation
// and as a harmless fallback when no panel is attached.
type NullDisplay struct{}

func (NullDisplay) Clear() error                        { return nil }
func (NullDisplay) ShowText(string, Size, string) error { return nil }
func (NullDisplay) ShowNumber(int, Size, string) error  { return nil }
func (NullDisplay) SetPixel(int, int, bool) error       { return nil }
func (NullDisplay) Close() error                        { return nil }
