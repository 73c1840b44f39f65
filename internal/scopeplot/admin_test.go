package scopeplot

import (
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/touchscope/internal/capture"
)

func newChartMux(t *testing.T) (*http.ServeMux, *capture.Store) {
	t.Helper()
	store, err := capture.Open(filepath.Join(t.TempDir(), "capture.db"))
	if err != nil {
		t.Fatalf("capture.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mux := http.NewServeMux()
	AttachAdminRoutes(mux, store)
	return mux, store
}

func getChart(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAttachAdminRoutes_CaptureChart(t *testing.T) {
	mux, store := newChartMux(t)

	sess, err := store.StartSession(2, "chart")
	if err != nil {
		t.Fatal(err)
	}
	values := [][]float32{{100, 80}, {101, float32(math.NaN())}, {99, 79}}
	for seq, v := range values {
		if err := store.RecordFrame(sess.ID, seq, v, []byte{'$'}); err != nil {
			t.Fatal(err)
		}
	}

	w := getChart(mux, "/debug/capture-chart")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{"ch1", "ch2", sess.ID} {
		if !strings.Contains(body, want) {
			t.Errorf("chart missing %q", want)
		}
	}

	w = getChart(mux, "/debug/capture-chart?session="+sess.ID+"&max_points=2")
	if w.Code != http.StatusOK {
		t.Fatalf("explicit session status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "stride=2") {
		t.Error("max_points did not downsample")
	}
}

func TestAttachAdminRoutes_CaptureChartNotFound(t *testing.T) {
	mux, store := newChartMux(t)

	if w := getChart(mux, "/debug/capture-chart"); w.Code != http.StatusNotFound {
		t.Errorf("no sessions: status = %d, want 404", w.Code)
	}
	if w := getChart(mux, "/debug/capture-chart?session=nope"); w.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want 404", w.Code)
	}

	if _, err := store.StartSession(1, "empty"); err != nil {
		t.Fatal(err)
	}
	if w := getChart(mux, "/debug/capture-chart"); w.Code != http.StatusNotFound {
		t.Errorf("empty session: status = %d, want 404", w.Code)
	}
}
