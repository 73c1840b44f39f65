package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/touchscope/internal/capture"
	"github.com/banshee-data/touchscope/internal/datascope"
	"github.com/banshee-data/touchscope/internal/monitoring"
	"github.com/banshee-data/touchscope/internal/readings"
	"github.com/banshee-data/touchscope/internal/scopeuart"
)

func quietLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.Logf = original })
}

func newTestScope(t *testing.T) (*datascope.Scope, *scopeuart.TestableSerialPort) {
	t.Helper()
	port := scopeuart.NewTestableSerialPort()
	tr := scopeuart.NewTransport(1, scopeuart.PortTable{1: "/dev/ttyUSB0"}, scopeuart.NewMockSerialPortFactory(port))
	require.NoError(t, tr.Configure(scopeuart.Config{Port: 1, TxPin: 17, RxPin: 16}))
	t.Cleanup(func() { tr.Close() })
	return datascope.NewScope(tr), port
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scope.json")
	err := os.WriteFile(path, []byte(`{
		"port": 0,
		"devices": {"0": "/dev/ttyS0"},
		"baud_rate": 115200,
		"channels": 4,
		"interval": "50ms"
	}`), 0o644)
	require.NoError(t, err)

	var opts runOptions
	fs := newRunFlagSet(&opts)
	require.NoError(t, fs.Parse([]string{"-config", path, "-channels", "6", "-device", "/dev/ttyACM0"}))

	cfg, err := resolveConfig(fs, &opts)
	require.NoError(t, err)

	require.Equal(t, 0, cfg.GetPort())
	require.Equal(t, 115200, cfg.GetBaudRate())
	require.Equal(t, 6, cfg.GetChannels())
	require.Equal(t, 50*time.Millisecond, cfg.GetInterval())

	dev, ok := cfg.PortTable().Lookup(0)
	require.True(t, ok)
	require.Equal(t, "/dev/ttyACM0", dev)
}

func TestResolveConfig_DefaultsWithoutFile(t *testing.T) {
	var opts runOptions
	fs := newRunFlagSet(&opts)
	require.NoError(t, fs.Parse(nil))

	cfg, err := resolveConfig(fs, &opts)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.GetPort())
	require.Equal(t, scopeuart.DefaultBaudRate, cfg.GetBaudRate())
	require.Equal(t, datascope.MaxChannels, cfg.GetChannels())
}

func TestResolveConfig_RejectsBadChannels(t *testing.T) {
	var opts runOptions
	fs := newRunFlagSet(&opts)
	require.NoError(t, fs.Parse([]string{"-channels", "11"}))

	_, err := resolveConfig(fs, &opts)
	require.Error(t, err)
}

func TestStreamer_SendsFramesAndSkipsBadInput(t *testing.T) {
	quietLogs(t)
	scope, port := newTestScope(t)

	input := strings.Join([]string{
		"1.5, -2.25, 0",
		"not,a,number",
		"7",
		"# comment",
		"0 0 0",
	}, "\n")
	s := &streamer{
		source:   readings.NewLineSource(strings.NewReader(input)),
		scope:    scope,
		channels: 3,
	}

	encoded, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, encoded)
	require.Equal(t, uint64(2), scope.FramesSent())

	want := []byte{
		0x24,
		0x00, 0x00, 0xc0, 0x3f,
		0x00, 0x00, 0x10, 0xc0,
		0x00, 0x00, 0x00, 0x00,
		0x0d,
		0x24,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x0d,
	}
	require.Equal(t, want, port.GetWrittenData())
}

func TestStreamer_StopsOnTransportError(t *testing.T) {
	quietLogs(t)
	scope, port := newTestScope(t)
	port.WriteError = errors.New("device unplugged")

	s := &streamer{
		source:   readings.NewLineSource(strings.NewReader("1\n2\n")),
		scope:    scope,
		channels: 1,
	}
	encoded, err := s.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "device unplugged")
	require.Equal(t, 0, encoded)
}

func TestStreamer_DisabledTransportStillEncodes(t *testing.T) {
	quietLogs(t)
	tr := scopeuart.NewTransport(1, scopeuart.PortTable{1: "/dev/ttyUSB0"}, scopeuart.NewMockSerialPortFactory(scopeuart.NewTestableSerialPort()))
	scope := datascope.NewScope(tr)

	s := &streamer{
		source:   readings.NewLineSource(strings.NewReader("1\n2\n3\n")),
		scope:    scope,
		channels: 1,
	}
	encoded, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, encoded)
	require.Zero(t, scope.FramesSent())
	require.Equal(t, uint64(3), tr.Status().Stats.SkippedSends)
}

func TestStreamer_HonoursCancellation(t *testing.T) {
	quietLogs(t)
	scope, _ := newTestScope(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &streamer{
		source:   readings.NewSyntheticSource(readings.DefaultSyntheticConfig(4)),
		scope:    scope,
		channels: 4,
		interval: time.Millisecond,
	}
	_, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStreamer_RecordsCapture(t *testing.T) {
	quietLogs(t)
	scope, _ := newTestScope(t)

	store, err := capture.Open(filepath.Join(t.TempDir(), "capture.db"))
	require.NoError(t, err)
	defer store.Close()

	rec, err := capture.NewRecorder(store, 2, "bench")
	require.NoError(t, err)

	s := &streamer{
		source:   readings.NewLineSource(strings.NewReader("1,2,99\n3,4\n")),
		scope:    scope,
		channels: 2,
		recorder: rec,
	}
	encoded, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, encoded)
	require.Equal(t, 2, rec.Count())

	frames, err := store.Frames(rec.SessionID())
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, []float32{1, 2}, frames[0].Values)
	require.Equal(t, []float32{3, 4}, frames[1].Values)
	require.Len(t, frames[1].Raw, datascope.FrameLength(2))
	require.Equal(t, byte(9), frames[1].Raw[datascope.TrailerOffset(2)])
}
