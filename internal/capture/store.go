// Package capture records streamed DataScope frames to sqlite so a tuning
// session can be reviewed after the fact.
package capture

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/touchscope/internal/timeutil"
)

// Store is a sqlite-backed frame log.
type Store struct {
	db    *sql.DB
	path  string
	clock timeutil.Clock
}

// Session is one continuous run of the stream loop.
type Session struct {
	ID        string    `json:"id"`
	Channels  int       `json:"channels"`
	Note      string    `json:"note,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Frames    int       `json:"frames"`
}

// Frame is one recorded frame with its decoded channel values.
type Frame struct {
	Seq        int
	RecordedAt time.Time
	Raw        []byte
	Values     []float32
}

// Open opens (creating if needed) the database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{db: db, path: path, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetClock replaces the clock used to stamp sessions and frames.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession creates a new session for frames carrying the given number of
// channels.
func (s *Store) StartSession(channels int, note string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		Channels:  channels,
		Note:      note,
		StartedAt: s.clock.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, channels, note, started_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Channels, sess.Note, sess.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return sess, nil
}

// RecordFrame stores the transmitted bytes and the values they carry.
func (s *Store) RecordFrame(sessionID string, seq int, values []float32, frame []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO frames (session_id, seq, recorded_at, frame) VALUES (?, ?, ?, ?)`,
		sessionID, seq, s.clock.Now().UTC().UnixNano(), frame,
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame %d: %w", seq, err)
	}

	// bits holds the exact float32 encoding; value is a readable copy for SQL
	// queries and is NULL for NaN.
	stmt, err := tx.Prepare(`INSERT INTO channel_values (session_id, seq, channel, bits, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, v := range values {
		var value any
		if !math.IsNaN(float64(v)) {
			value = float64(v)
		}
		if _, err := stmt.Exec(sessionID, seq, i+1, int64(math.Float32bits(v)), value); err != nil {
			return fmt.Errorf("failed to insert channel %d of frame %d: %w", i+1, seq, err)
		}
	}

	return tx.Commit()
}

// Sessions lists recorded sessions, oldest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.session_id, s.channels, s.note, s.started_at, COUNT(f.seq)
		FROM sessions s
		LEFT JOIN frames f ON f.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.ID, &sess.Channels, &sess.Note, &started, &sess.Frames); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.StartedAt = time.Unix(0, started).UTC()
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Session returns a single session, or nil if it does not exist.
func (s *Store) Session(id string) (*Session, error) {
	sessions, err := s.Sessions()
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// Frames returns every frame of a session in sequence order.
func (s *Store) Frames(sessionID string) ([]Frame, error) {
	rows, err := s.db.Query(`
		SELECT f.seq, f.recorded_at, f.frame, v.channel, v.bits
		FROM frames f
		LEFT JOIN channel_values v ON v.session_id = f.session_id AND v.seq = f.seq
		WHERE f.session_id = ?
		ORDER BY f.seq ASC, v.channel ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var (
			seq      int
			recorded int64
			raw      []byte
			channel  sql.NullInt64
			bits     sql.NullInt64
		)
		if err := rows.Scan(&seq, &recorded, &raw, &channel, &bits); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		if len(frames) == 0 || frames[len(frames)-1].Seq != seq {
			frames = append(frames, Frame{
				Seq:        seq,
				RecordedAt: time.Unix(0, recorded).UTC(),
				Raw:        raw,
			})
		}
		if channel.Valid && bits.Valid {
			f := &frames[len(frames)-1]
			f.Values = append(f.Values, math.Float32frombits(uint32(bits.Int64)))
		}
	}
	return frames, rows.Err()
}
