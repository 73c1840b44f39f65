package scopeuart

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts transport diagnostics under /debug/ on mux. These
// routes are meant for localhost or tailnet access only.
func (t *Transport) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("scope", "DataScope serial transport status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t.Status()); err != nil {
			http.Error(w, "Failed to encode status", http.StatusInternalServerError)
		}
	})

	// API endpoint to stop frame output without closing the device
	debug.HandleSilentFunc("scope-disable", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		t.Disable()
		io.WriteString(w, fmt.Sprintf("scope output disabled on uart%d", t.addr))
	})
}
