package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandCamera shells out to an external imaging tool (libcamera-still,
// raspistill, fswebcam, ...). The configured command template must
// contain one %s placeholder for the output path.
type CommandCamera struct {
	template  string
	outputDir string
	now       func() time.Time // injectable for tests
}

// NewCommandCamera creates the camera and ensures the output directory exists.
func NewCommandCamera(template, outputDir string) (*CommandCamera, error) {
	if !strings.Contains(template, "%s") {
		return nil, fmt.Errorf("camera command %q has no %%s output placeholder", template)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CommandCamera{
		template:  template,
		outputDir: outputDir,
		now:       time.Now,
	}, nil
}

// Capture runs the imaging tool bound to ctx and returns the produced
// filename (relative to the output directory).
func (c *CommandCamera) Capture(ctx context.Context) (string, error) {
	filename := c.now().Format("20060102-150405.000") + ".jpg"
	outPath := filepath.Join(c.outputDir, filename)

	cmdline := fmt.Sprintf(c.template, outPath)
	parts := strings.Fields(cmdline)

	log.Debug().Str("cmd", cmdline).Msg("starting capture command")
	start := time.Now()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("capture command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("capture command produced no image at %s: %w", outPath, err)
	}

	log.Info().Str("file", filename).Dur("took", time.Since(start)).Msg("image captured")
	return filename, nil
}
