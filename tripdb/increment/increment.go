// Package increment is the crash-safe segment store for in-flight track points.
// Points are buffered by the engine and flushed here as append-only,
// atomically-written segment files; on finalize, all segments for a token are
// merged into one GPX track and then - only then - deleted.
package increment

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/metrics"

	"github.com/leantrack/tripd/conceptual"
	"github.com/leantrack/tripd/gpx"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/tripdb/flat"
	"github.com/leantrack/tripd/types/trackpoint"
)

var (
	meterSegmentsWritten = metrics.NewRegisteredCounter("tripd/segments/written", nil)
	meterSegmentWriteErr = metrics.NewRegisteredCounter("tripd/segments/write_errors", nil)
	meterLinesCorrupt    = metrics.NewRegisteredCounter("tripd/segments/corrupt_lines", nil)
	meterOrphansMerged   = metrics.NewRegisteredCounter("tripd/orphans/merged", nil)
)

// Log is an increment log rooted at a data directory.
// Exactly one engine instance owns a given token's segment directory at a time;
// the Log itself takes no locks.
type Log struct {
	segments *flat.Flat
	tracks   *flat.Flat
	logger   *slog.Logger
}

func NewLog(root string) (*Log, error) {
	f := flat.NewFlatWithRoot(root)
	l := &Log{
		segments: f.Joining(params.SegmentsDir),
		tracks:   f.Joining(params.TracksDir),
		logger:   slog.With("d", "increment"),
	}
	if err := l.segments.MkdirAll(); err != nil {
		return nil, err
	}
	if err := l.tracks.MkdirAll(); err != nil {
		return nil, err
	}
	return l, nil
}

// SegmentsPath returns the segment directory.
func (l *Log) SegmentsPath() string { return l.segments.Path() }

// TrackPath returns where the finalized track for a token lives (or will).
func (l *Log) TrackPath(token conceptual.Token) string {
	return filepath.Join(l.tracks.Path(), params.TrackFileName(token))
}

// WriteSegment persists points as segment (token, seq).
// The write is atomic: the final name never holds a partial file.
func (l *Log) WriteSegment(token conceptual.Token, seq int, points []*trackpoint.TrackPoint) error {
	name := params.SegmentFileName(token, seq)
	err := l.segments.WriteFileAtomic(name, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, tp := range points {
			if _, err := bw.WriteString(tp.MarshalLine()); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err != nil {
		meterSegmentWriteErr.Inc(1)
		return fmt.Errorf("write segment %s: %w", name, err)
	}
	meterSegmentsWritten.Inc(1)
	l.logger.Debug("Wrote segment", "segment", name, "points", len(points))
	return nil
}

// OrphanSession is a token with persisted segments but no finalized track,
// implying an unclean prior shutdown.
type OrphanSession struct {
	Token conceptual.Token
	// Files are the token's segment files, sorted by sequence number.
	Files []string
}

// parseSegmentName splits {token}_{seq}.inc. Temp files and foreign names
// report !ok.
func parseSegmentName(name string) (token conceptual.Token, seq int, ok bool) {
	if !strings.HasSuffix(name, params.SegmentFileExt) {
		return "", 0, false
	}
	base := strings.TrimSuffix(name, params.SegmentFileExt)
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return "", 0, false
	}
	return conceptual.Token(base[:i]), n, true
}

// ListOrphanSessions groups segment files by token and returns those tokens
// with no matching finalized track. Segment order within a session is by
// sequence number; wall-clock write time is never consulted.
func (l *Log) ListOrphanSessions() ([]OrphanSession, error) {
	matches, err := l.segments.Glob("*" + params.SegmentFileExt)
	if err != nil {
		return nil, err
	}
	bySeq := map[conceptual.Token]map[int]string{}
	for _, m := range matches {
		token, seq, ok := parseSegmentName(filepath.Base(m))
		if !ok {
			continue
		}
		if bySeq[token] == nil {
			bySeq[token] = map[int]string{}
		}
		bySeq[token][seq] = m
	}
	orphans := []OrphanSession{}
	for token, seqs := range bySeq {
		if _, err := os.Stat(l.TrackPath(token)); err == nil {
			// Finalized already; leftover segments get cleaned opportunistically.
			continue
		}
		o := OrphanSession{Token: token}
		nums := make([]int, 0, len(seqs))
		for n := range seqs {
			nums = append(nums, n)
		}
		sort.Ints(nums)
		for _, n := range nums {
			o.Files = append(o.Files, seqs[n])
		}
		orphans = append(orphans, o)
	}
	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].Token < orphans[j].Token
	})
	return orphans, nil
}

// ReadSegments deserializes points from an ordered file list.
// A corrupt file or corrupt line is skipped, not fatal;
// recovery degrades gracefully rather than aborting.
func (l *Log) ReadSegments(files []string) []*trackpoint.TrackPoint {
	points := []*trackpoint.TrackPoint{}
	for _, file := range files {
		fi, err := os.Open(file)
		if err != nil {
			l.logger.Warn("Skipping unreadable segment", "file", file, "error", err)
			continue
		}
		scanner := bufio.NewScanner(fi)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			tp, err := trackpoint.UnmarshalLine(line)
			if err != nil {
				meterLinesCorrupt.Inc(1)
				l.logger.Warn("Skipping corrupt segment line", "file", file, "error", err)
				continue
			}
			points = append(points, tp)
		}
		if err := scanner.Err(); err != nil {
			l.logger.Warn("Segment read truncated", "file", file, "error", err)
		}
		fi.Close()
	}
	return points
}

// MergeToFinalTrack concatenates all points from the given segment files and
// writes one finalized GPX track for the token. Returns the track path, or ""
// when the result set is empty (nothing worth finalizing).
// It does NOT delete segments; callers delete only after a successful merge.
func (l *Log) MergeToFinalTrack(token conceptual.Token, files []string) (string, error) {
	points := l.ReadSegments(files)
	if len(points) == 0 {
		return "", nil
	}
	name := params.TrackFileName(token)
	err := l.tracks.WriteFileAtomic(name, func(w io.Writer) error {
		return gpx.Encode(w, token.String(), points)
	})
	if err != nil {
		return "", fmt.Errorf("merge track %s: %w", name, err)
	}
	l.logger.Info("Finalized track", "token", token, "points", len(points), "segments", len(files))
	return l.TrackPath(token), nil
}

// SegmentFiles lists the token's segment files sorted by sequence number.
func (l *Log) SegmentFiles(token conceptual.Token) ([]string, error) {
	matches, err := l.segments.Glob(token.String() + "_*" + params.SegmentFileExt)
	if err != nil {
		return nil, err
	}
	type seg struct {
		seq  int
		file string
	}
	segs := make([]seg, 0, len(matches))
	for _, m := range matches {
		_, n, ok := parseSegmentName(filepath.Base(m))
		if !ok {
			continue
		}
		segs = append(segs, seg{seq: n, file: m})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })
	files := make([]string, 0, len(segs))
	for _, s := range segs {
		files = append(files, s.file)
	}
	return files, nil
}

// DeleteSegments removes all segment files - and any leftover temp files -
// for a token. Safe to call when none exist.
func (l *Log) DeleteSegments(token conceptual.Token) error {
	matches, err := l.segments.Glob(token.String() + "_*")
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete segment %s: %w", m, err)
		}
	}
	return nil
}

// Finalize merges all given segment files into the token's track and, on
// success, deletes the segments. Merge-then-delete, never delete-before-merge.
func (l *Log) Finalize(token conceptual.Token, files []string) (string, error) {
	path, err := l.MergeToFinalTrack(token, files)
	if err != nil {
		return "", err
	}
	if err := l.DeleteSegments(token); err != nil {
		// The track is safe; stray segments get caught on the next orphan scan.
		l.logger.Warn("Finalize left stray segments", "token", token, "error", err)
	}
	return path, nil
}

// FinalizeOrphans finds and finalizes every orphan session,
// returning how many were recovered. Called on process start,
// before any new session can begin.
func (l *Log) FinalizeOrphans() (int, error) {
	orphans, err := l.ListOrphanSessions()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range orphans {
		if _, err := l.Finalize(o.Token, o.Files); err != nil {
			l.logger.Error("Failed to finalize orphan session", "token", o.Token, "error", err)
			continue
		}
		meterOrphansMerged.Inc(1)
		n++
	}
	return n, nil
}
