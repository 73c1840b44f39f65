package capture

import "github.com/banshee-data/touchscope/internal/monitoring"

// Recorder appends frames to one session with increasing sequence numbers.
type Recorder struct {
	store   *Store
	session *Session
	seq     int
}

// NewRecorder starts a session on store.
func NewRecorder(store *Store, channels int, note string) (*Recorder, error) {
	sess, err := store.StartSession(channels, note)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("capture session %s started (%d channels)", sess.ID, channels)
	return &Recorder{store: store, session: sess}, nil
}

// SessionID returns the ID of the session being recorded.
func (r *Recorder) SessionID() string {
	return r.session.ID
}

// Record stores one frame. The frame bytes are copied by the driver, so the
// caller may reuse its buffer.
func (r *Recorder) Record(values []float32, frame []byte) error {
	if err := r.store.RecordFrame(r.session.ID, r.seq, values, frame); err != nil {
		return err
	}
	r.seq++
	return nil
}

// Count returns the number of frames recorded so far.
func (r *Recorder) Count() int {
	return r.seq
}
