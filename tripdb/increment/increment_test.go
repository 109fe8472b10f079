package increment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leantrack/tripd/conceptual"
	"github.com/leantrack/tripd/gpx"
	"github.com/leantrack/tripd/types/trackpoint"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	l, err := NewLog(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func testTrack(n int, start time.Time) []*trackpoint.TrackPoint {
	points := make([]*trackpoint.TrackPoint, n)
	for i := range points {
		points[i] = trackpoint.New(
			46.9+float64(i)*0.0001, -114.0, 900, 10,
			start.Add(time.Duration(i)*time.Second))
	}
	return points
}

func TestSegmentRoundTrip(t *testing.T) {
	l := testLog(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := conceptual.NewToken(start)
	points := testTrack(25, start)

	// Flush as three increments; read-back must reproduce the exact ordered
	// sequence regardless of the split.
	if err := l.WriteSegment(token, 0, points[:10]); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteSegment(token, 1, points[10:20]); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteSegment(token, 2, points[20:]); err != nil {
		t.Fatal(err)
	}

	files, err := l.SegmentFiles(token)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("want 3 segment files, got %v", files)
	}
	got := l.ReadSegments(files)
	if len(got) != len(points) {
		t.Fatalf("want %d points, got %d", len(points), len(got))
	}
	for i := range got {
		if *got[i] != *points[i] {
			t.Fatalf("point %d mismatch: %+v != %+v", i, got[i], points[i])
		}
	}
}

func TestSegmentFilesOrderBySeqNotLexical(t *testing.T) {
	l := testLog(t)
	now := time.Now()
	token := conceptual.NewToken(now)
	// Seq 10 sorts lexically before seq 2 only if parsing is naive.
	for _, seq := range []int{10, 2, 0} {
		if err := l.WriteSegment(token, seq, testTrack(1, now)); err != nil {
			t.Fatal(err)
		}
	}
	files, err := l.SegmentFiles(token)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 2, 10}
	for i, f := range files {
		_, seq, ok := parseSegmentName(filepath.Base(f))
		if !ok || seq != want[i] {
			t.Fatalf("position %d: got %q, want seq %d", i, f, want[i])
		}
	}
}

func TestFinalizeMergesThenDeletes(t *testing.T) {
	l := testLog(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := conceptual.NewToken(start)
	points := testTrack(8, start)
	if err := l.WriteSegment(token, 0, points[:4]); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteSegment(token, 1, points[4:]); err != nil {
		t.Fatal(err)
	}

	files, _ := l.SegmentFiles(token)
	path, err := l.Finalize(token, files)
	if err != nil {
		t.Fatal(err)
	}
	if path != l.TrackPath(token) {
		t.Fatalf("path=%q want %q", path, l.TrackPath(token))
	}

	fi, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fi.Close()
	merged, err := gpx.Decode(fi)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != len(points) {
		t.Fatalf("merged %d points, want %d", len(merged), len(points))
	}

	remaining, _ := l.SegmentFiles(token)
	if len(remaining) != 0 {
		t.Fatalf("segments must be deleted after merge, got %v", remaining)
	}
}

func TestOrphanDiscoveryAndRecovery(t *testing.T) {
	l := testLog(t)
	startA := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	startB := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	tokenA := conceptual.NewToken(startA)
	tokenB := conceptual.NewToken(startB)
	if err := l.WriteSegment(tokenA, 0, testTrack(3, startA)); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteSegment(tokenB, 0, testTrack(3, startB)); err != nil {
		t.Fatal(err)
	}
	if err := l.WriteSegment(tokenB, 1, testTrack(3, startB.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	orphans, err := l.ListOrphanSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 2 {
		t.Fatalf("want 2 orphans, got %+v", orphans)
	}
	if orphans[0].Token != tokenA || orphans[1].Token != tokenB {
		t.Fatalf("orphans not sorted by token: %+v", orphans)
	}
	if len(orphans[1].Files) != 2 {
		t.Fatalf("tokenB should have 2 files: %+v", orphans[1])
	}

	n, err := l.FinalizeOrphans()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("recovered %d, want 2", n)
	}

	// Finalize is terminal: a second scan finds nothing.
	orphans, err = l.ListOrphanSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 0 {
		t.Fatalf("want 0 orphans after recovery, got %+v", orphans)
	}
}

func TestRecoveryAfterSimulatedCrash(t *testing.T) {
	// A crash mid-flush leaves a temp file next to completed segments.
	// Recovery must finalize the completed segments and ignore the temp,
	// and deleting segments must also sweep the temp away.
	l := testLog(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := conceptual.NewToken(start)
	points := testTrack(6, start)
	if err := l.WriteSegment(token, 0, points); err != nil {
		t.Fatal(err)
	}
	tempName := filepath.Join(l.SegmentsPath(), token.String()+"_0001.inc.tmp123456")
	if err := os.WriteFile(tempName, []byte("46.9,-114.0,10,17"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := l.FinalizeOrphans()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("recovered %d, want 1", n)
	}
	fi, err := os.Open(l.TrackPath(token))
	if err != nil {
		t.Fatal(err)
	}
	defer fi.Close()
	merged, err := gpx.Decode(fi)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != len(points) {
		t.Fatalf("merged %d points, want %d", len(merged), len(points))
	}
	if _, err := os.Stat(tempName); !os.IsNotExist(err) {
		t.Fatal("temp file should be swept by segment deletion")
	}
}

func TestReadSegmentsSkipsCorruptLines(t *testing.T) {
	l := testLog(t)
	now := time.Now()
	token := conceptual.NewToken(now)
	good := testTrack(2, now)
	if err := l.WriteSegment(token, 0, good); err != nil {
		t.Fatal(err)
	}
	files, _ := l.SegmentFiles(token)

	// Append a truncated line, as a crash mid-append would leave.
	fi, err := os.OpenFile(files[0], os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	fi.WriteString("46.93,-114.0\n")
	fi.Close()

	got := l.ReadSegments(files)
	if len(got) != len(good) {
		t.Fatalf("corrupt line should be skipped: got %d points, want %d", len(got), len(good))
	}
}

func TestMergeEmptySession(t *testing.T) {
	l := testLog(t)
	token := conceptual.NewToken(time.Now())
	path, err := l.MergeToFinalTrack(token, nil)
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Fatalf("empty merge should produce no track, got %q", path)
	}
}

func TestParseSegmentName(t *testing.T) {
	token, seq, ok := parseSegmentName("20250601T120000.000_0003.inc")
	if !ok || token != "20250601T120000.000" || seq != 3 {
		t.Fatalf("got %q %d %v", token, seq, ok)
	}
	for _, bad := range []string{
		"20250601T120000.000_0003.inc.tmp99",
		"_0003.inc",
		"noseq.inc",
		"track_20250601T120000.000.gpx",
	} {
		if _, _, ok := parseSegmentName(bad); ok {
			t.Errorf("parseSegmentName(%q) should fail", bad)
		}
	}
}
