package scopeplot

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/touchscope/internal/capture"
)

// AttachAdminRoutes mounts /debug/capture-chart on mux. It renders a
// captured session as an HTML line chart.
// Query params:
//   - session (optional; defaults to the most recent session)
//   - max_points (optional; default DefaultMaxPoints)
func AttachAdminRoutes(mux *http.ServeMux, store *capture.Store) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("capture-chart", "Chart of a captured session", func(w http.ResponseWriter, r *http.Request) {
		sess, err := lookupSession(store, r.URL.Query().Get("session"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if sess == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		maxPoints := DefaultMaxPoints
		if mp := r.URL.Query().Get("max_points"); mp != "" {
			if v, err := strconv.Atoi(mp); err == nil && v > 0 {
				maxPoints = v
			}
		}

		frames, err := store.Frames(sess.ID)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to load frames: %v", err), http.StatusInternalServerError)
			return
		}

		var buf bytes.Buffer
		title := "Session " + sess.ID
		if err := RenderHTML(&buf, frames, sess.Channels, title, maxPoints); err != nil {
			if errors.Is(err, ErrNoData) {
				http.Error(w, "session has no frames", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
}

func lookupSession(store *capture.Store, id string) (*capture.Session, error) {
	if id != "" {
		return store.Session(id)
	}
	sessions, err := store.Sessions()
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return &sessions[len(sessions)-1], nil
}
