package webd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leantrack/tripd/engine"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/tripdb/increment"
)

func testDaemon(t *testing.T) (*WebDaemon, *engine.Engine) {
	t.Helper()
	ilog, err := increment.NewLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(params.DefaultConfig(), ilog, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })
	return NewWebDaemon(params.DefaultWebDaemonConfig(), eng), eng
}

func TestPing(t *testing.T) {
	d, _ := testDaemon(t)
	srv := httptest.NewServer(d.NewRouter())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", res.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	d, eng := testDaemon(t)
	srv := httptest.NewServer(d.NewRouter())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	var st engine.Status
	if err := json.NewDecoder(res.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.State != "idle" || st.IsRecording {
		t.Fatalf("status=%+v", st)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.Apply(engine.Trigger{Kind: engine.TriggerStart, At: at})

	res2, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Body.Close()
	if err := json.NewDecoder(res2.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.IsRecording || st.Token == "" {
		t.Fatalf("status=%+v", st)
	}
}

func TestLastPointEndpoint(t *testing.T) {
	d, eng := testDaemon(t)
	srv := httptest.NewServer(d.NewRouter())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/tracks/last")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("empty engine: status=%d", res.StatusCode)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.Apply(engine.Trigger{Kind: engine.TriggerStart, At: at})
	eng.Apply(engine.LocationFix{Lat: 46.9, Lon: -114.0, Speed: 10, At: at.Add(time.Second)})

	res2, err := http.Get(srv.URL + "/tracks/last")
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", res2.StatusCode)
	}
	var f struct {
		Type     string `json:"type"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(res2.Body).Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != "Feature" {
		t.Fatalf("type=%q", f.Type)
	}
	if f.Geometry.Coordinates[0] != -114.0 || f.Geometry.Coordinates[1] != 46.9 {
		t.Fatalf("coordinates=%v", f.Geometry.Coordinates)
	}
	// No inertial source attached; NaN readings must not leak into JSON.
	if _, ok := f.Properties["Lean"]; ok {
		t.Fatal("absent lean must be omitted")
	}
}
