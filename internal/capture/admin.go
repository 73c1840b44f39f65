package capture

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts a tailSQL console and a session listing under
// /debug/ on mux.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.db, &tailsql.DBOptions{
		Label: "Capture DB",
	})
	debug.Handle("tailsql/", "SQL live debugging of captured frames", tsql.NewMux())

	debug.HandleFunc("capture-sessions", "Recorded capture sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions, err := s.Sessions()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to list sessions: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sessions); err != nil {
			http.Error(w, "Failed to encode sessions", http.StatusInternalServerError)
		}
	})
	return nil
}
