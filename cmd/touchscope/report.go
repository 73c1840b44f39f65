package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/banshee-data/touchscope/internal/capture"
	"github.com/banshee-data/touchscope/internal/scopeplot"
)

type reportOptions struct {
	dbPath    string
	sessionID string
	outPath   string
	asJSON    bool
	list      bool
}

type sessionReport struct {
	Session capture.Session        `json:"session"`
	Stats   []capture.ChannelStats `json:"stats"`
}

func newReportFlagSet(opts *reportOptions) *flag.FlagSet {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.StringVar(&opts.dbPath, "db", "", "capture database written by 'run -capture'")
	fs.StringVar(&opts.sessionID, "session", "", "session ID to report (default: most recent)")
	fs.StringVar(&opts.outPath, "out", "", "write a PNG chart of the session to this path")
	fs.BoolVar(&opts.asJSON, "json", false, "print statistics as JSON")
	fs.BoolVar(&opts.list, "list", false, "list sessions and exit")
	return fs
}

func reportCommand(args []string, out io.Writer) error {
	var opts reportOptions
	fs := newReportFlagSet(&opts)
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.dbPath == "" {
		return errors.New("report: -db is required")
	}

	store, err := capture.Open(opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open capture database: %w", err)
	}
	defer store.Close()

	if opts.list {
		return listSessions(store, out)
	}

	sess, err := pickSession(store, opts.sessionID)
	if err != nil {
		return err
	}
	frames, err := store.Frames(sess.ID)
	if err != nil {
		return err
	}

	report := sessionReport{
		Session: *sess,
		Stats:   capture.Summarise(frames, sess.Channels),
	}
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		writeStatsTable(out, report)
	}

	if opts.outPath != "" {
		title := fmt.Sprintf("Session %s", sess.ID)
		if sess.Note != "" {
			title += " - " + sess.Note
		}
		if err := scopeplot.Save(frames, sess.Channels, scopeplot.DefaultOptions(title), opts.outPath); err != nil {
			return err
		}
		if !opts.asJSON {
			fmt.Fprintf(out, "\nchart written to %s\n", opts.outPath)
		}
	}
	return nil
}

// pickSession returns the session with id, or the most recent one when id
// is empty.
func pickSession(store *capture.Store, id string) (*capture.Session, error) {
	if id != "" {
		sess, err := store.Session(id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("session %q not found", id)
		}
		return sess, nil
	}

	sessions, err := store.Sessions()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, errors.New("no capture sessions recorded")
	}
	return &sessions[len(sessions)-1], nil
}

func listSessions(store *capture.Store, out io.Writer) error {
	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tCHANNELS\tFRAMES\tNOTE")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Channels, s.Frames, s.Note)
	}
	return w.Flush()
}

func writeStatsTable(out io.Writer, r sessionReport) {
	fmt.Fprintf(out, "session %s: %d frames, %d channels, started %s\n",
		r.Session.ID, r.Session.Frames, r.Session.Channels,
		r.Session.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if r.Session.Note != "" {
		fmt.Fprintf(out, "note: %s\n", r.Session.Note)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "CH\tN\tMIN\tMAX\tMEAN\tSTDDEV\tSWING\tSNR\tTHRESHOLD\t")
	for _, s := range r.Stats {
		fmt.Fprintf(w, "%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%.1f\t%.3f\t\n",
			s.Channel, s.Count, s.Min, s.Max, s.Mean, s.StdDev, s.Swing, s.SNR, s.Threshold)
	}
	w.Flush()
}
