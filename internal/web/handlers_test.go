package web

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/photobox/internal/logic/orchestrator"
)

type fakeFirer struct {
	outcome orchestrator.Outcome
	err     error
	calls   int
}

func (f *fakeFirer) Fire(source orchestrator.Source) (orchestrator.Outcome, error) {
	f.calls++
	return f.outcome, f.err
}

type fakeQuota struct {
	limit, remaining int
}

func (q fakeQuota) Limit() int     { return q.limit }
func (q fakeQuota) Remaining() int { return q.remaining }

func newTestServer(firer Firer) (*Server, *Broadcaster, *Broadcaster) {
	events := NewBroadcaster()
	logs := NewBroadcaster()
	static := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<html>photobox</html>")}}
	h := NewHandlers(firer, fakeQuota{limit: 10, remaining: 4}, events, logs, static)
	return NewServer(":0", h, "photos"), events, logs
}

func postCapture(t *testing.T, srv *Server) (*httptest.ResponseRecorder, captureResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/capture", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var body captureResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec, body
}

func TestHandleCapture_Success(t *testing.T) {
	srv, _, _ := newTestServer(&fakeFirer{outcome: orchestrator.Outcome{Filename: "shot.jpg", Saved: true}})
	rec, body := postCapture(t, srv)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.OK)
	assert.Equal(t, "/photos/shot.jpg", body.URL)
	assert.True(t, body.Saved)
}

func TestHandleCapture_SuccessWithoutLocalFile(t *testing.T) {
	// DSLR-tethered captures land off-board: ok but nothing saved here.
	srv, _, _ := newTestServer(&fakeFirer{outcome: orchestrator.Outcome{}})
	rec, body := postCapture(t, srv)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.OK)
	assert.Empty(t, body.URL)
	assert.False(t, body.Saved)
}

func TestHandleCapture_Busy(t *testing.T) {
	srv, _, _ := newTestServer(&fakeFirer{err: orchestrator.ErrBusy})
	rec, body := postCapture(t, srv)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, body.OK)
	assert.Equal(t, "Busy", body.Error)
}

func TestHandleCapture_LimitReached(t *testing.T) {
	srv, _, _ := newTestServer(&fakeFirer{err: orchestrator.ErrLimitReached})
	rec, body := postCapture(t, srv)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Daily limit reached", body.Error)
}

func TestHandleCapture_Failure(t *testing.T) {
	srv, _, _ := newTestServer(&fakeFirer{err: orchestrator.ErrCaptureFailed})
	rec, body := postCapture(t, srv)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Capture failed", body.Error)
}

func TestHandleCapture_GetNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(&fakeFirer{})
	req := httptest.NewRequest(http.MethodGet, "/capture", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleQuota(t *testing.T) {
	srv, _, _ := newTestServer(&fakeFirer{})
	req := httptest.NewRequest(http.MethodGet, "/quota", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 10, body["limit"])
	assert.Equal(t, 4, body["remaining"])
}

func TestServeIndex(t *testing.T) {
	srv, _, _ := newTestServer(&fakeFirer{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "photobox")
}

func TestHandleEvents_StreamsNotifications(t *testing.T) {
	srv, events, _ := newTestServer(&fakeFirer{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		// Re-publish a few times in case the subscription races the GET.
		for i := 0; i < 20; i++ {
			time.Sleep(25 * time.Millisecond)
			events.Publish("captured", "live.jpg")
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	deadline := time.After(2 * time.Second)
	for scanner.Scan() {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for event")
		default:
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt))
		assert.Equal(t, "captured", evt.Type)
		assert.Equal(t, "live.jpg", evt.Filename)
		return
	}
	t.Fatal("stream ended without an event")
}

func TestHandleLogStream_StreamsRawLines(t *testing.T) {
	srv, _, logs := newTestServer(&fakeFirer{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/logs/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	go func() {
		for i := 0; i < 20; i++ {
			time.Sleep(25 * time.Millisecond)
			_, _ = Writer(logs).Write([]byte(`{"level":"info","message":"hello"}` + "\n"))
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	deadline := time.After(2 * time.Second)
	for scanner.Scan() {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for log line")
		default:
		}
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			assert.Contains(t, line, "hello")
			return
		}
	}
	t.Fatal("stream ended without a log line")
}
