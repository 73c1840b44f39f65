package capture

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/touchscope/internal/timeutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "capture.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 clean", version, dirty)
	}

	// re-running is a no-op
	if err := s.MigrateUp(); err != nil {
		t.Errorf("second MigrateUp() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	s := openTestStore(t)
	if err := s.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	version, _, err := s.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("version = %d after down, want 0", version)
	}
	if _, err := s.StartSession(3, ""); err == nil {
		t.Error("expected insert to fail with tables dropped")
	}
}

func TestRecordAndReadFrames(t *testing.T) {
	s := openTestStore(t)

	sess, err := s.StartSession(3, "pad tuning")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session ID should be set")
	}

	inputs := [][]float32{
		{1.5, -2.25, 0},
		{1000, 999.5, 998},
	}
	for i, v := range inputs {
		raw := []byte{'$', byte(i), 13}
		if err := s.RecordFrame(sess.ID, i, v, raw); err != nil {
			t.Fatalf("RecordFrame(%d) error = %v", i, err)
		}
	}

	frames, err := s.Frames(sess.ID)
	if err != nil {
		t.Fatalf("Frames() error = %v", err)
	}
	want := []Frame{
		{Seq: 0, Raw: []byte{'$', 0, 13}, Values: inputs[0]},
		{Seq: 1, Raw: []byte{'$', 1, 13}, Values: inputs[1]},
	}
	if diff := cmp.Diff(want, frames, cmpopts.IgnoreFields(Frame{}, "RecordedAt")); diff != "" {
		t.Errorf("Frames() mismatch (-want +got):\n%s", diff)
	}

	sessions, err := s.Sessions()
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Sessions() len = %d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.ID != sess.ID || got.Channels != 3 || got.Note != "pad tuning" || got.Frames != 2 {
		t.Errorf("unexpected session %+v", got)
	}
	if !got.StartedAt.Equal(sess.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, sess.StartedAt)
	}
}

func TestRecordFrame_DuplicateSeq(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(1, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordFrame(sess.ID, 0, []float32{1}, []byte{'$'}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordFrame(sess.ID, 0, []float32{2}, []byte{'$'}); err == nil {
		t.Fatal("expected duplicate seq to fail")
	}

	// the failed insert is rolled back
	frames, err := s.Frames(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || frames[0].Values[0] != 1 {
		t.Errorf("unexpected frames after rollback: %+v", frames)
	}
}

func TestRecordFrame_UnknownSession(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordFrame("missing", 0, []float32{1}, []byte{'$'}); err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestSession_Lookup(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(2, "")
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Session(sess.ID)
	if err != nil || got == nil || got.ID != sess.ID {
		t.Fatalf("Session(%q) = %+v, %v", sess.ID, got, err)
	}
	missing, err := s.Session("nope")
	if err != nil || missing != nil {
		t.Errorf("Session(nope) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestRecorder(t *testing.T) {
	s := openTestStore(t)
	r, err := NewRecorder(s, 2, "demo")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}

	buf := []byte{'$', 0, 0, 0, 0, 0, 0, 0, 0, 9}
	for i := 0; i < 5; i++ {
		buf[1] = byte(i)
		if err := r.Record([]float32{float32(i), float32(-i)}, buf); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}
	if r.Count() != 5 {
		t.Errorf("Count() = %d, want 5", r.Count())
	}

	frames, err := s.Frames(r.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 5 {
		t.Fatalf("len(frames) = %d, want 5", len(frames))
	}
	for i, f := range frames {
		if f.Seq != i || f.Raw[1] != byte(i) || f.Values[1] != float32(-i) {
			t.Errorf("frame %d = %+v", i, f)
		}
	}
}

func TestSessions_OrderedByStartTime(t *testing.T) {
	s := openTestStore(t)
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	clock.AutoStep(time.Minute)
	s.SetClock(clock)

	first, err := s.StartSession(3, "baseline")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.StartSession(3, "touch")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordFrame(second.ID, 0, []float32{1, 2, 3}, []byte{'$'}); err != nil {
		t.Fatal(err)
	}

	sessions, err := s.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	want := []Session{
		{ID: first.ID, Channels: 3, Note: "baseline", StartedAt: start},
		{ID: second.ID, Channels: 3, Note: "touch", StartedAt: start.Add(time.Minute), Frames: 1},
	}
	if diff := cmp.Diff(want, sessions); diff != "" {
		t.Errorf("Sessions() mismatch (-want +got):\n%s", diff)
	}

	frames, err := s.Frames(second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := frames[0].RecordedAt, start.Add(2*time.Minute); !got.Equal(want) {
		t.Errorf("RecordedAt = %v, want %v", got, want)
	}
}

func TestRecordFrame_NonFiniteValues(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(3, "")
	if err != nil {
		t.Fatal(err)
	}

	nan := math.Float32frombits(0x7fc00001)
	inputs := [][]float32{
		{1, nan, float32(math.Copysign(0, -1))},
		{float32(math.Inf(1)), float32(math.Inf(-1)), math.SmallestNonzeroFloat32},
	}
	for seq, values := range inputs {
		if err := s.RecordFrame(sess.ID, seq, values, []byte{'$'}); err != nil {
			t.Fatalf("RecordFrame(%d) error = %v", seq, err)
		}
	}

	frames, err := s.Frames(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != len(inputs) {
		t.Fatalf("len(frames) = %d, want %d", len(frames), len(inputs))
	}
	for i, f := range frames {
		if len(f.Values) != len(inputs[i]) {
			t.Fatalf("frame %d has %d values, want %d", i, len(f.Values), len(inputs[i]))
		}
		for ch, v := range f.Values {
			if got, want := math.Float32bits(v), math.Float32bits(inputs[i][ch]); got != want {
				t.Errorf("frame %d ch%d bits = %#08x, want %#08x", i, ch+1, got, want)
			}
		}
	}
}
