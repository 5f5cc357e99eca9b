package camera

import "context"

// Camera is the high-level capture interface. A capture is long-running
// (acquisition plus on-camera encoding can take several seconds) and its
// latency is opaque to callers; the orchestrator overlaps it with the
// countdown rather than waiting for it up front.
type Camera interface {
	// Capture produces one image and returns the filename of the result,
	// relative to the camera's output directory. Implementations that
	// store images off-board (e.g. on a DSLR's own card) return "".
	Capture(ctx context.Context) (filename string, err error)
}
