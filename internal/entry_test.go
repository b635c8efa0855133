package internal

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/starford/taxonid/internal/metrics"
	"github.com/starford/taxonid/internal/models"
	"github.com/starford/taxonid/internal/sse"
	"github.com/starford/taxonid/internal/taxdb"
	tu "github.com/starford/taxonid/internal/testutil"
)

type fakeCount struct {
	n   int
	err error
}

func (f fakeCount) Count(context.Context) (int, error) { return f.n, f.err }

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestRouter_Health(t *testing.T) {
	api := http.NotFoundHandler()
	reg := prometheus.NewRegistry()

	r := newRouter(api, fakeCount{n: 14}, reg)
	if w := get(t, r, "/health/live"); w.Code != http.StatusOK {
		t.Errorf("live = %d", w.Code)
	}
	if w := get(t, r, "/health/ready"); w.Code != http.StatusOK {
		t.Errorf("ready = %d", w.Code)
	}

	for name, store := range map[string]fakeCount{
		"empty":  {n: 0},
		"broken": {err: errors.New("disk I/O error")},
	} {
		r := newRouter(api, store, reg)
		if w := get(t, r, "/health/ready"); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s store ready = %d, want 503", name, w.Code)
		}
	}
}

func TestRouter_MetricsAndAPI(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncrementOutcome(string(models.OutcomeAmbiguous))

	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "api:"+r.URL.Path)
	})
	r := newRouter(api, fakeCount{n: 1}, reg)

	w := get(t, r, "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `taxonid_resolutions_total{outcome="ambiguous"} 1`) {
		t.Errorf("metrics = %d %s", w.Code, w.Body.String())
	}

	w = get(t, r, "/api/resolve")
	if w.Body.String() != "api:/resolve" {
		t.Errorf("api mount = %q", w.Body.String())
	}
}

func TestReloadTaxonomy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxa.sqlite")
	db, err := taxdb.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	m := metrics.New(prometheus.NewRegistry())
	broker := sse.NewBroker(time.Millisecond)
	defer broker.Close()
	events := broker.Subscribe()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Replace the file with a seeded one, as a fresh download would.
	next := filepath.Join(t.TempDir(), "taxa.sqlite")
	seeded := tu.TestDBAt(t, next)
	seeded.Close()
	if err := os.Rename(next, path); err != nil {
		t.Fatal(err)
	}

	reloadTaxonomy(db, m, broker, logger, path)

	if _, err := db.Lineage(context.Background(), 1570); err != nil {
		t.Errorf("reloaded database misses fixture: %v", err)
	}
	if got := testutil.ToFloat64(m.TaxonomyReloads); got != 1 {
		t.Errorf("reloads = %v, want 1", got)
	}
	select {
	case msg := <-events:
		if !strings.Contains(string(msg), sse.EventTaxonomyChanged) {
			t.Errorf("event = %q", msg)
		}
	case <-time.After(time.Second):
		t.Error("no taxonomy.changed event")
	}
}

func TestReloadTaxonomy_MissingFileKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxa.sqlite")
	db := tu.TestDBAt(t, path)
	m := metrics.New(prometheus.NewRegistry())
	broker := sse.NewBroker(time.Millisecond)
	defer broker.Close()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	reloadTaxonomy(db, m, broker, slog.New(slog.NewTextHandler(io.Discard, nil)), path)

	if got := testutil.ToFloat64(m.TaxonomyReloads); got != 0 {
		t.Errorf("reloads = %v, want 0", got)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("reload must not recreate the file: %v", err)
	}
}

// gzipTar builds a bundle holding a single marker file.
func gzipTar(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte("marker")
	if err := tw.WriteHeader(&tar.Header{Name: "marker.txt", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
