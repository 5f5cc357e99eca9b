package web

import (
	"encoding/json"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is a broadcast-only notification record pushed to /events
// listeners. Not persisted.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // "captured" | "uploaded"
	Timestamp string `json:"timestamp"`
	Filename  string `json:"filename,omitempty"`
}

// Broadcaster distributes payloads to multiple SSE clients. Writes to
// slow clients are dropped, never block, and a client is removed only
// when its connection goes away (the subscriber calls its cleanup).
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	entropy *ulid.MonotonicEntropy
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan string]struct{}),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Subscribe returns a channel that receives broadcast payloads and a
// cleanup function. The caller must call the cleanup when done (e.g.
// on client disconnect).
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish broadcasts a typed notification event to every subscriber.
func (b *Broadcaster) Publish(evtType, filename string) {
	b.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), b.entropy).String()
	b.mu.Unlock()

	data, err := json.Marshal(Event{
		ID:        id,
		Type:      evtType,
		Timestamp: time.Now().Format(time.RFC3339),
		Filename:  filename,
	})
	if err != nil {
		return
	}
	b.publishRaw(string(data))
}

// Captured satisfies the orchestrator's Notifier interface.
func (b *Broadcaster) Captured(filename string) {
	b.Publish("captured", filename)
}

// publishRaw fans an already-encoded payload out to every subscriber.
// Full client buffers drop the payload (non-blocking, best-effort).
func (b *Broadcaster) publishRaw(payload string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Writer wraps a broadcaster as an io.Writer so log output can be teed
// into an SSE stream; each Write becomes one payload.
func Writer(b *Broadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *Broadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.publishRaw(msg)
	}
	return len(p), nil
}
