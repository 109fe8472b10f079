// Package engine is the recording session state machine. It owns the session
// token, the in-memory point buffer, and the capture lifecycle:
//
//	Idle -> Recording -> PendingFinalize -> (Recording | Idle)
//
// All mutation happens in Apply, fed by one goroutine (Run), so the state
// needs no locking; only the published status snapshot is guarded, since
// collaborators (webd, CLI) query it from outside the loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/leantrack/tripd/conceptual"
	"github.com/leantrack/tripd/events"
	"github.com/leantrack/tripd/fusion"
	"github.com/leantrack/tripd/geo/motion"
	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/tripdb/increment"
	"github.com/leantrack/tripd/types/trackpoint"
)

type SessionState int

const (
	Idle SessionState = iota
	Recording
	PendingFinalize
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case PendingFinalize:
		return "pending-finalize"
	}
	return "unknown"
}

// Status is the queryable engine snapshot. Collaborators use it to decide
// whether a session is running (permissions, live UI) without touching the
// event loop.
type Status struct {
	State             string           `json:"state"`
	Token             conceptual.Token `json:"token,omitempty"`
	IsRecording       bool             `json:"isRecording"`
	DistanceMeters    float64          `json:"distanceMeters"`
	OdometerMeters    float64          `json:"odometerMeters"`
	RecoveredSessions int              `json:"recoveredSessions"`
}

type Engine struct {
	cfg    *params.Config
	log    *increment.Log
	fusion *fusion.Fusion
	db     *stateDB
	logger *slog.Logger

	// Session state. Owned by the Apply loop.
	state     SessionState
	token     conceptual.Token
	startTime time.Time
	pausedAt  time.Time
	deadline  time.Time
	seq       int
	buffer    []*trackpoint.TrackPoint
	lastPoint *trackpoint.TrackPoint
	distance  float64

	flushFailures int
	lastFixAt     time.Time
	accuracy      *meter
	rate          *meter

	odometer  float64
	recovered int

	lastCache *ttlcache.Cache[string, *trackpoint.TrackPoint]

	eventsCh chan Event

	statusMu sync.RWMutex
	status   Status
}

// New builds an engine over an increment log. dbPath is the bbolt file for
// durable engine state (lifetime odometer, last point); empty disables it.
func New(cfg *params.Config, log *increment.Log, dbPath string) (*Engine, error) {
	if cfg == nil {
		cfg = params.DefaultConfig()
	}
	e := &Engine{
		cfg:      cfg,
		log:      log,
		fusion:   fusion.New(cfg.FusionConfig),
		logger:   slog.With("d", "engine"),
		accuracy: newMeter(cfg.MeterWindow),
		rate:     newMeter(cfg.MeterWindow),
		lastCache: ttlcache.New[string, *trackpoint.TrackPoint](
			ttlcache.WithTTL[string, *trackpoint.TrackPoint](params.CacheLastPointTTL)),
		eventsCh: make(chan Event, 1024),
	}
	if dbPath != "" {
		db, err := openStateDB(dbPath)
		if err != nil {
			return nil, fmt.Errorf("engine state db: %w", err)
		}
		e.db = db
		e.odometer = db.ReadOdometer()
	}
	e.publishStatus()
	return e, nil
}

func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Feed delivers an event to the engine loop. Never blocks: under backpressure
// (or after stop) the event is dropped with a warning, which for sensor
// streams is reduced fidelity, not corruption.
func (e *Engine) Feed(ev Event) {
	select {
	case e.eventsCh <- ev:
	default:
		e.logger.Warn("Event dropped, engine backpressure", "event", fmt.Sprintf("%T", ev))
	}
}

// RecoverOrphans finalizes sessions left behind by an unclean shutdown.
// Run calls this before entering Idle; it is exported for the recover command.
func (e *Engine) RecoverOrphans() (int, error) {
	n, err := e.log.FinalizeOrphans()
	if err != nil {
		return n, err
	}
	e.recovered += n
	if n > 0 {
		e.logger.Info("Recovered orphan sessions", "count", n)
	}
	e.publishStatus()
	return n, nil
}

// Run drives the engine until ctx is done: recovery first, then the event
// loop with the stats and flush tickers. On cancellation the session is
// stopped (flushed and finalized) and the tickers die with the loop - a
// timer firing after logical stop has no loop to land on.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.RecoverOrphans(); err != nil {
		e.logger.Error("Orphan recovery failed", "error", err)
	}

	statsTicker := time.NewTicker(e.cfg.StatsInterval)
	defer statsTicker.Stop()
	flushTicker := time.NewTicker(e.cfg.FlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Apply(StopRequest{At: time.Now()})
			return nil
		case ev := <-e.eventsCh:
			e.Apply(ev)
		case t := <-statsTicker.C:
			e.Apply(statsTick{At: t})
		case t := <-flushTicker.C:
			e.Apply(flushTick{At: t})
		}
	}
}

// Apply is the one transition function; every event lands here.
// Exported so tests can drive the machine synchronously with synthetic time.
func (e *Engine) Apply(ev Event) {
	switch ev := ev.(type) {
	case Trigger:
		e.applyTrigger(ev)
	case StopRequest:
		e.applyStop(ev.At)
	case LocationFix:
		e.applyFix(ev)
	case OrientationSample:
		e.fusion.OrientationSample(ev.M, ev.At)
	case AccelSample:
		e.fusion.AccelSample(ev.V, ev.At)
	case statsTick:
		e.applyStatsTick(ev.At)
	case flushTick:
		if e.state == Recording {
			e.flush()
		}
	default:
		e.logger.Warn("Unknown event", "event", fmt.Sprintf("%T", ev))
	}
	e.publishStatus()
}

func (e *Engine) applyTrigger(t Trigger) {
	switch t.Kind {
	case TriggerStart:
		switch e.state {
		case Idle:
			e.token = conceptual.NewToken(t.At)
			e.startTime = t.At
			e.seq = 0
			e.buffer = nil
			e.lastPoint = nil
			e.distance = 0
			e.flushFailures = 0
			e.lastFixAt = time.Time{}
			e.accuracy.Reset()
			e.rate.Reset()
			e.fusion.Start()
			e.state = Recording
			e.logger.Info("Session started", "token", e.token)
			events.LifecycleFeed.Send(events.Lifecycle{Kind: events.SessionStarted, Token: e.token})
		case PendingFinalize:
			// Resume within the finalize window: same token, same trip.
			// Buffer and sequence counter continue; statistics keep the
			// original session start.
			e.pausedAt = time.Time{}
			e.deadline = time.Time{}
			e.fusion.Start()
			e.state = Recording
			e.logger.Info("Session resumed", "token", e.token)
			events.LifecycleFeed.Send(events.Lifecycle{Kind: events.SessionResumed, Token: e.token})
		}
	case TriggerPause:
		if e.state != Recording {
			return
		}
		e.flush()
		e.fusion.Stop()
		e.pausedAt = t.At
		e.deadline = t.At.Add(e.cfg.FinalizeTimeout)
		e.state = PendingFinalize
		e.logger.Info("Session paused", "token", e.token, "finalizeIn", e.cfg.FinalizeTimeout)
		events.LifecycleFeed.Send(events.Lifecycle{Kind: events.SessionPaused, Token: e.token})
	}
}

func (e *Engine) applyStop(at time.Time) {
	if e.state == Idle {
		return
	}
	e.finalize(at)
}

func (e *Engine) applyFix(fix LocationFix) {
	if e.state != Recording {
		return
	}
	lean, accel := e.fusion.Readings()
	tp := trackpoint.New(fix.Lat, fix.Lon, fix.Altitude, fix.Speed, fix.At)
	tp.Lean = lean
	tp.Accel = accel
	if err := tp.Validate(); err != nil {
		e.logger.Warn("Rejecting invalid fix", "error", err)
		return
	}

	if e.lastPoint != nil {
		e.distance += motion.Distance(e.lastPoint, tp)
	}
	e.buffer = append(e.buffer, tp)
	e.lastPoint = tp

	e.accuracy.Push(fix.Accuracy)
	if !e.lastFixAt.IsZero() {
		if dt := fix.At.Sub(e.lastFixAt).Seconds(); dt > 0 {
			e.rate.Push(1 / dt)
		}
	}
	e.lastFixAt = fix.At

	e.lastCache.Set("last", tp, ttlcache.DefaultTTL)
	events.NewStampedPointFeed.Send(tp)
}

// flush drains the buffer into one new increment segment. On failure the
// buffer is retained for retry on the next tick: no data loss, but repeated
// failures grow memory, which is reported as a warning condition.
func (e *Engine) flush() {
	if len(e.buffer) == 0 {
		return
	}
	if err := e.log.WriteSegment(e.token, e.seq, e.buffer); err != nil {
		e.flushFailures++
		e.logger.Warn("Segment flush failed, buffer retained",
			"token", e.token, "seq", e.seq, "buffered", len(e.buffer), "error", err)
		if e.flushFailures >= e.cfg.FlushFailureWarn {
			e.logger.Warn("Repeated flush failures, unbounded buffer growth",
				"failures", e.flushFailures, "buffered", len(e.buffer))
		}
		return
	}
	e.flushFailures = 0
	e.seq++
	e.buffer = nil
	if e.db != nil && e.lastPoint != nil {
		e.db.WriteLastPoint(e.lastPoint)
	}
}

// finalize merges and deletes the token's segments, in that order.
// If the buffer cannot be flushed the finalize is aborted and retried on a
// later tick rather than dropping unflushed points.
func (e *Engine) finalize(at time.Time) {
	e.flush()
	if len(e.buffer) > 0 {
		e.deadline = at // keep the deadline hot so stats ticks retry
		if e.state == Recording {
			e.state = PendingFinalize
			e.pausedAt = at
		}
		return
	}
	files, err := e.log.SegmentFiles(e.token)
	if err != nil {
		e.logger.Error("Finalize aborted, cannot list segments", "token", e.token, "error", err)
		return
	}
	path, err := e.log.Finalize(e.token, files)
	if err != nil {
		e.logger.Error("Finalize failed, will retry", "token", e.token, "error", err)
		return
	}
	e.logger.Info("Session finalized", "token", e.token, "track", path, "distance", e.distance)
	events.LifecycleFeed.Send(events.Lifecycle{
		Kind: events.SessionFinalized, Token: e.token, TrackPath: path,
	})

	e.odometer += e.distance
	if e.db != nil {
		e.db.WriteOdometer(e.odometer)
	}

	e.fusion.Stop()
	e.token = ""
	e.startTime = time.Time{}
	e.pausedAt = time.Time{}
	e.deadline = time.Time{}
	e.seq = 0
	e.buffer = nil
	e.lastPoint = nil
	e.distance = 0
	e.state = Idle
}

func (e *Engine) applyStatsTick(at time.Time) {
	if e.state == PendingFinalize && !e.deadline.IsZero() && !at.Before(e.deadline) {
		e.finalize(at)
	}
	if e.state == Idle {
		return
	}
	events.StatsFeed.Send(e.statsAt(at))
}

func (e *Engine) statsAt(at time.Time) events.Stats {
	s := events.Stats{
		Token:               e.token,
		DistanceMeters:      e.distance,
		DurationMs:          at.Sub(e.startTime).Milliseconds(),
		IsRecording:         e.state == Recording,
		FileName:            params.TrackFileName(e.token),
		CurrentAccuracy:     e.accuracy.Current(),
		AvgAccuracy:         e.accuracy.Avg(),
		CurrentUpdateRateHz: e.rate.Current(),
		AvgUpdateRateHz:     e.rate.Avg(),
	}
	if e.state == PendingFinalize {
		if !e.pausedAt.IsZero() {
			s.PausedForMs = at.Sub(e.pausedAt).Milliseconds()
		}
		if remaining := e.deadline.Sub(at); remaining > 0 {
			s.PauseTimeoutRemainingMs = remaining.Milliseconds()
		}
	}
	return s
}

func (e *Engine) publishStatus() {
	st := Status{
		State:             e.state.String(),
		Token:             e.token,
		IsRecording:       e.state == Recording,
		DistanceMeters:    e.distance,
		OdometerMeters:    e.odometer,
		RecoveredSessions: e.recovered,
	}
	e.statusMu.Lock()
	e.status = st
	e.statusMu.Unlock()
}

// Status returns the latest published snapshot. Safe from any goroutine.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// IsRecording reports whether a session is actively capturing.
func (e *Engine) IsRecording() bool {
	return e.Status().IsRecording
}

// LastPoint returns the most recently stamped point, if fresh.
func (e *Engine) LastPoint() *trackpoint.TrackPoint {
	if item := e.lastCache.Get("last"); item != nil {
		return item.Value()
	}
	if e.db != nil {
		if tp, err := e.db.ReadLastPoint(); err == nil {
			return tp
		}
	}
	return nil
}
