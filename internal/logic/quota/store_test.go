package quota

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/photobox/internal/metrics"
)

func TestLoad_FreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	s, err := Load(path, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, s.Remaining())
	assert.True(t, s.CanCapture())

	// The fresh record is persisted immediately.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 10, rec.ShotsRemaining)
	assert.Equal(t, time.Now().Format("2006-01-02"), rec.Date)
}

func TestDecrement_PersistsAndFloorsAtZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	s, err := Load(path, 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		s.Decrement()
	}
	assert.Equal(t, 0, s.Remaining())
	assert.False(t, s.CanCapture())

	// A reload sees the persisted zero, not a fresh allowance.
	s2, err := Load(path, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, s2.Remaining())
}

func TestRemaining_TracksConsumedShots(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "quota.json"), 10)
	require.NoError(t, err)

	for k := 1; k <= 10; k++ {
		s.Decrement()
		assert.Equal(t, 10-k, s.Remaining())
		assert.Equal(t, k < 10, s.CanCapture())
	}
}

func TestEnsureToday_ResetsOncePerDateChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	s, err := Load(path, 5)
	require.NoError(t, err)

	day := time.Date(2026, 8, 29, 23, 50, 0, 0, time.Local)
	s.now = func() time.Time { return day }
	s.record.Date = day.Format("2006-01-02")
	s.Decrement()
	s.Decrement()
	require.Equal(t, 3, s.Remaining())

	// Midnight passes; first access rolls the record forward.
	day = day.Add(20 * time.Minute)
	assert.Equal(t, 5, s.Remaining())
	assert.Equal(t, "2026-08-30", s.record.Date)

	// Further accesses on the same date do not reset again.
	s.Decrement()
	assert.Equal(t, 4, s.Remaining())
	assert.Equal(t, 4, s.Remaining())
}

func TestQuotaGauge_FollowsDecrementsAndDateRollover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	s, err := Load(path, 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.QuotaRemaining))

	day := time.Date(2026, 8, 29, 23, 50, 0, 0, time.Local)
	s.now = func() time.Time { return day }
	s.record.Date = day.Format("2006-01-02")
	s.Decrement()
	s.Decrement()
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.QuotaRemaining))

	// The lazy midnight reset must refresh the gauge too.
	day = day.Add(20 * time.Minute)
	require.Equal(t, 5, s.Remaining())
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.QuotaRemaining))
}

func TestLoad_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := Load(path, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Remaining())
}

func TestLoad_OutOfRangeRecordStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	rec := Record{Date: time.Now().Format("2006-01-02"), ShotsRemaining: 99}
	data, _ := json.Marshal(rec)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := Load(path, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Remaining())
}

func TestPersist_NoStaleTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quota.json")
	s, err := Load(path, 10)
	require.NoError(t, err)
	s.Decrement()

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should have been renamed away")
}

func TestPersist_FailureKeepsMemoryAuthoritative(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quota.json")
	s, err := Load(path, 10)
	require.NoError(t, err)

	// Make the directory unwritable; decrements must survive in memory.
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	s.Decrement()
	assert.Equal(t, 9, s.Remaining())
}
