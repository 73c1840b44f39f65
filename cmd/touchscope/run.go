package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/touchscope/internal/capture"
	"github.com/banshee-data/touchscope/internal/config"
	"github.com/banshee-data/touchscope/internal/datascope"
	"github.com/banshee-data/touchscope/internal/monitoring"
	"github.com/banshee-data/touchscope/internal/readings"
	"github.com/banshee-data/touchscope/internal/scopeplot"
	"github.com/banshee-data/touchscope/internal/scopeuart"
	"github.com/banshee-data/touchscope/internal/version"
)

type runOptions struct {
	configPath string

	port     int
	device   string
	baud     int
	txPin    int
	rxPin    int
	channels int
	interval time.Duration

	input      string
	demo       bool
	demoFrames int
	seed       uint64

	capturePath string
	note        string
	listen      string

	dryRun  bool
	verbose bool
}

func newRunFlagSet(opts *runOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "JSON config file")
	fs.IntVar(&opts.port, "port", 1, "UART index of the scope debug port (0-2)")
	fs.StringVar(&opts.device, "device", "", "serial device for the selected UART, e.g. /dev/ttyUSB0")
	fs.IntVar(&opts.baud, "baud", scopeuart.DefaultBaudRate, "baud rate")
	fs.IntVar(&opts.txPin, "tx-pin", 17, "TX pin number (recorded for reference)")
	fs.IntVar(&opts.rxPin, "rx-pin", 16, "RX pin number (recorded for reference)")
	fs.IntVar(&opts.channels, "channels", datascope.MaxChannels, "channels per frame (1-10)")
	fs.DurationVar(&opts.interval, "interval", 20*time.Millisecond, "minimum time between frames; 0 sends as fast as input arrives")
	fs.StringVar(&opts.input, "input", "-", "readings file, one frame per line ('-' for stdin)")
	fs.BoolVar(&opts.demo, "demo", false, "generate synthetic touch readings instead of reading input")
	fs.IntVar(&opts.demoFrames, "demo-frames", 0, "stop the demo after this many frames (0 = run until interrupted)")
	fs.Uint64Var(&opts.seed, "seed", 1, "random seed for -demo")
	fs.StringVar(&opts.capturePath, "capture", "", "record frames to this sqlite database")
	fs.StringVar(&opts.note, "note", "", "note stored with the capture session")
	fs.StringVar(&opts.listen, "listen", "", "admin debug listen address, e.g. localhost:8081")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "encode frames without opening the serial port")
	fs.BoolVar(&opts.verbose, "v", false, "log every frame")
	return fs
}

// resolveConfig loads the config file, if any, and applies flags that were
// set explicitly on the command line. Without -config the repository default
// file is used when it is present in the working directory.
func resolveConfig(fs *flag.FlagSet, opts *runOptions) (*config.ScopeConfig, error) {
	cfg := config.EmptyScopeConfig()
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		var err error
		cfg, err = config.LoadScopeConfig(path)
		if err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = &opts.port
		case "baud":
			cfg.BaudRate = &opts.baud
		case "tx-pin":
			cfg.TxPin = &opts.txPin
		case "rx-pin":
			cfg.RxPin = &opts.rxPin
		case "channels":
			cfg.Channels = &opts.channels
		case "interval":
			s := opts.interval.String()
			cfg.Interval = &s
		case "capture":
			cfg.CaptureDB = &opts.capturePath
		case "listen":
			cfg.Listen = &opts.listen
		}
	})
	if opts.device != "" {
		cfg.SetDevice(cfg.GetPort(), opts.device)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runCommand(args []string, out io.Writer) error {
	var opts runOptions
	fs := newRunFlagSet(&opts)
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	monitoring.SetVerbose(opts.verbose)

	cfg, err := resolveConfig(fs, &opts)
	if err != nil {
		return err
	}
	channels := cfg.GetChannels()

	transport := scopeuart.NewTransport(cfg.GetPort(), cfg.PortTable(), nil)
	defer transport.Close()
	if opts.dryRun {
		log.Printf("dry run: uart%d not opened, frames will be encoded but not sent", cfg.GetPort())
	} else if err := transport.Configure(cfg.UARTConfig()); err != nil {
		return fmt.Errorf("failed to configure scope port (set -device or a devices map in -config): %w", err)
	}

	var source readings.Source
	switch {
	case opts.demo:
		sc := readings.DefaultSyntheticConfig(channels)
		sc.MaxFrames = opts.demoFrames
		sc.Seed = opts.seed
		source = readings.NewSyntheticSource(sc)
	case opts.input == "-":
		source = readings.NewLineSource(os.Stdin)
	default:
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		source = readings.NewLineSource(f)
	}

	var store *capture.Store
	var recorder *capture.Recorder
	if path := cfg.GetCaptureDB(); path != "" {
		store, err = capture.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open capture database: %w", err)
		}
		defer store.Close()
		recorder, err = capture.NewRecorder(store, channels, opts.note)
		if err != nil {
			return err
		}
	}

	log.Printf("%s: streaming %d channels every %s", version.String(), channels, cfg.GetInterval())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scope := datascope.NewScope(transport)
	s := &streamer{
		source:   source,
		scope:    scope,
		channels: channels,
		interval: cfg.GetInterval(),
		recorder: recorder,
	}

	var wg sync.WaitGroup
	if listen := cfg.GetListen(); listen != "" {
		mux := http.NewServeMux()
		transport.AttachAdminRoutes(mux)
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				return err
			}
			scopeplot.AttachAdminRoutes(mux, store)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveAdmin(ctx, listen, mux)
		}()
	}

	encoded, err := s.Run(ctx)
	stop()
	wg.Wait()

	log.Printf("encoded %d frames, sent %d", encoded, scope.FramesSent())
	if recorder != nil {
		log.Printf("capture session %s: %d frames", recorder.SessionID(), recorder.Count())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveAdmin runs the debug HTTP server until ctx is done.
func serveAdmin(ctx context.Context, listen string, mux *http.ServeMux) {
	server := &http.Server{
		Addr:    listen,
		Handler: mux,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin server shutdown error: %v", err)
		server.Close()
	}
}

// streamer pulls readings from a source and prints them to the scope at a
// bounded rate.
type streamer struct {
	source   readings.Source
	scope    *datascope.Scope
	channels int
	interval time.Duration
	recorder *capture.Recorder
}

// Run streams until the source is exhausted or ctx is cancelled and returns
// the number of frames encoded. Malformed or short input lines are logged
// and skipped; transport failures end the stream.
func (s *streamer) Run(ctx context.Context) (int, error) {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	encoded := 0
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return encoded, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return encoded, err
		}

		values, err := s.source.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return encoded, nil
		case errors.Is(err, readings.ErrMalformedLine):
			monitoring.Logf("skipping input: %v", err)
			continue
		case err != nil:
			return encoded, err
		}

		if _, err := s.scope.Print(values, s.channels); err != nil {
			if errors.Is(err, datascope.ErrShortData) {
				monitoring.Logf("skipping frame: %v", err)
				continue
			}
			return encoded, err
		}
		encoded++

		if s.recorder != nil {
			if err := s.recorder.Record(values[:s.channels], s.scope.LastFrame(s.channels)); err != nil {
				monitoring.Logf("failed to record frame: %v", err)
			}
		}
	}
}
