package engine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"go.etcd.io/bbolt"

	"github.com/leantrack/tripd/params"
	"github.com/leantrack/tripd/types/trackpoint"
)

var (
	keyOdometer  = []byte("odometer")
	keyLastPoint = []byte("lastPoint")
)

// stateDB persists engine state that should survive restarts but is not part
// of any trip file: the lifetime odometer and the last stamped point.
// Everything here is best-effort; failures degrade to defaults, never crash.
type stateDB struct {
	db     *bbolt.DB
	logger *slog.Logger
}

func openStateDB(path string) (*stateDB, error) {
	// Opening writable blocks competing engines with a file lock,
	// which enforces the one-writer-per-datadir contract.
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	return &stateDB{db: db, logger: slog.With("d", "statedb")}, nil
}

func (s *stateDB) Close() error {
	return s.db.Close()
}

func (s *stateDB) put(key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(params.EngineStateBucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

func (s *stateDB) get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(params.EngineStateBucket)
		if bucket == nil {
			return nil
		}
		// The value returned by Get is only valid in the scope of the
		// transaction; copy out.
		if got := bucket.Get(key); got != nil {
			out = append([]byte{}, got...)
		}
		return nil
	})
	return out, err
}

func (s *stateDB) WriteOdometer(meters float64) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(meters))
	if err := s.put(keyOdometer, buf); err != nil {
		s.logger.Warn("Failed to store odometer", "error", err)
	}
}

func (s *stateDB) ReadOdometer() float64 {
	got, err := s.get(keyOdometer)
	if err != nil || len(got) != 8 {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(got))
}

func (s *stateDB) WriteLastPoint(tp *trackpoint.TrackPoint) {
	b, err := json.Marshal(tp)
	if err != nil {
		s.logger.Warn("Failed to encode last point", "error", err)
		return
	}
	if err := s.put(keyLastPoint, b); err != nil {
		s.logger.Warn("Failed to store last point", "error", err)
	}
}

func (s *stateDB) ReadLastPoint() (*trackpoint.TrackPoint, error) {
	got, err := s.get(keyLastPoint)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, fmt.Errorf("no last point")
	}
	tp := &trackpoint.TrackPoint{}
	if err := json.Unmarshal(got, tp); err != nil {
		return nil, fmt.Errorf("%w: %q", err, string(got))
	}
	return tp, nil
}
