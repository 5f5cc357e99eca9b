// Package quota enforces the kiosk's daily shot allowance.
package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cjeanneret/photobox/internal/metrics"
)

const dateLayout = "2006-01-02"

// Record is the persisted daily counter. Date is the local calendar
// date the counter belongs to; after any Store access it is always
// today (rolled forward lazily).
type Record struct {
	Date           string `json:"date"`
	ShotsRemaining int    `json:"shots_remaining"`
}

// Store owns the quota record. The orchestrator is the sole caller and
// runs one capture at a time, so there are no concurrent writers; no
// locking is needed beyond that discipline.
type Store struct {
	path   string
	limit  int
	record Record
	now    func() time.Time // injectable for date-rollover tests
}

// Load reads the persisted record, initializing a fresh one for today
// when the file is absent or does not parse.
func Load(path string, limit int) (*Store, error) {
	s := &Store{path: path, limit: limit, now: time.Now}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &s.record); jsonErr != nil || !s.record.valid(limit) {
			log.Warn().Str("path", path).Msg("quota state invalid, starting fresh")
			s.reset()
		}
	case os.IsNotExist(err):
		s.reset()
	default:
		return nil, fmt.Errorf("read quota state: %w", err)
	}

	s.ensureToday()
	s.persist()
	return s, nil
}

func (r Record) valid(limit int) bool {
	if r.ShotsRemaining < 0 || r.ShotsRemaining > limit {
		return false
	}
	_, err := time.Parse(dateLayout, r.Date)
	return err == nil
}

func (s *Store) reset() {
	s.record = Record{
		Date:           s.now().Format(dateLayout),
		ShotsRemaining: s.limit,
	}
}

// ensureToday rolls the record forward when the local date has changed,
// restoring the full allowance. It runs before every check or mutation,
// so the reset happens exactly once per date change, lazily.
func (s *Store) ensureToday() {
	today := s.now().Format(dateLayout)
	if s.record.Date == today {
		return
	}
	log.Info().Str("from", s.record.Date).Str("to", today).Int("limit", s.limit).Msg("new day, quota reset")
	s.record = Record{Date: today, ShotsRemaining: s.limit}
	s.persist()
}

// CanCapture reports whether at least one shot remains today.
func (s *Store) CanCapture() bool {
	s.ensureToday()
	return s.record.ShotsRemaining > 0
}

// Decrement consumes one shot (floor zero) and persists.
func (s *Store) Decrement() {
	s.ensureToday()
	if s.record.ShotsRemaining > 0 {
		s.record.ShotsRemaining--
	}
	s.persist()
}

// Remaining returns today's remaining shots.
func (s *Store) Remaining() int {
	s.ensureToday()
	return s.record.ShotsRemaining
}

// Limit returns the configured daily allowance.
func (s *Store) Limit() int {
	return s.limit
}

// persist writes the record with a write-temp-then-rename so a crash
// mid-write never leaves a corrupt state file. A failed write is logged
// and otherwise ignored: the in-memory record stays authoritative for
// the rest of the run. Every mutation ends here, including the lazy
// date rollover, which keeps the gauge in step with the record.
func (s *Store) persist() {
	metrics.QuotaRemaining.Set(float64(s.record.ShotsRemaining))

	data, err := json.MarshalIndent(s.record, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("marshal quota state failed")
		return
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("create quota state dir failed")
			return
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("write quota state failed")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("rename quota state failed")
	}
}
