package display

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ServerDisplay drives the LCD through a persistent display-server
// subprocess. Commands are line-delimited JSON on the child's stdin;
// every command is acknowledged with {"status":"ok"} (or an error) on
// stdout. Keeping the process alive avoids per-draw interpreter startup
// lag on the Pi.
type ServerDisplay struct {
	mu      sync.Mutex // one in-flight command
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	acks    chan serverReply
	timeout time.Duration
}

type serverReply struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type serverCommand struct {
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
	Number *int   `json:"number,omitempty"`
	Size   string `json:"size,omitempty"`
	Color  string `json:"color,omitempty"`
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
	On     *bool  `json:"on,omitempty"`
}

// NewServerDisplay spawns the display server (e.g. "python3
// display_server.py") and waits for its ready line. timeout bounds each
// subsequent draw command.
func NewServerDisplay(command string, timeout time.Duration) (*ServerDisplay, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty display command")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("display stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("display stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start display server: %w", err)
	}

	d := &ServerDisplay{
		cmd:     cmd,
		stdin:   stdin,
		acks:    make(chan serverReply, 4),
		timeout: timeout,
	}
	go d.readLoop(stdout)

	// First line is the ready banner, not an ack.
	select {
	case <-d.acks:
		log.Info().Str("command", command).Msg("display server ready")
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("display server did not become ready")
	}

	return d, nil
}

func (d *ServerDisplay) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var reply serverReply
		if err := json.Unmarshal([]byte(line), &reply); err != nil {
			// Ready banner and any stray prints arrive as plain text.
			reply = serverReply{Status: "ok", Message: line}
		}
		select {
		case d.acks <- reply:
		default:
			log.Warn().Str("line", line).Msg("display ack dropped (no waiter)")
		}
	}
	log.Warn().Msg("display server stdout closed")
}

func (d *ServerDisplay) send(c serverCommand) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// An ack that arrived after its command already timed out belongs to
	// that dead command; discard it so the wait below only ever pairs
	// with this command's reply.
	for {
		select {
		case stale := <-d.acks:
			log.Warn().Str("status", stale.Status).Str("message", stale.Message).Msg("stale display ack discarded")
			continue
		default:
		}
		break
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := d.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("display write: %w", err)
	}

	select {
	case reply := <-d.acks:
		if reply.Status != "ok" {
			return fmt.Errorf("display server error: %s", reply.Message)
		}
		return nil
	case <-time.After(d.timeout):
		return fmt.Errorf("display command %q timed out after %v", c.Action, d.timeout)
	}
}

func (d *ServerDisplay) Clear() error {
	return d.send(serverCommand{Action: "clear"})
}

func (d *ServerDisplay) ShowText(text string, size Size, color string) error {
	return d.send(serverCommand{Action: "text", Text: text, Size: string(size), Color: color})
}

func (d *ServerDisplay) ShowNumber(n int, size Size, color string) error {
	return d.send(serverCommand{Action: "number", Number: &n, Size: string(size), Color: color})
}

func (d *ServerDisplay) SetPixel(x, y int, on bool) error {
	return d.send(serverCommand{Action: "pixel", X: &x, Y: &y, On: &on})
}

// Close shuts the subprocess down by closing its stdin and waiting
// briefly for a clean exit.
func (d *ServerDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_ = d.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- d.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		_ = d.cmd.Process.Kill()
		return fmt.Errorf("display server did not exit, killed")
	}
}
