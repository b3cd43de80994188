package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/PratikDhanave/driving-alerts/internal/models"
)

var (
	// Bucket names
	bucketEvents      = []byte("events")
	bucketAlerts      = []byte("alerts")
	bucketUnsafeIndex = []byte("idx_unsafe_events")
	bucketAlertIndex  = []byte("idx_alerts")
)

// BoltStore implements Store on a single bbolt file.
//
// Records live in events/alerts keyed by ID. Unsafe events and alerts are
// also indexed under category|0x00|timestamp|id so that window queries are a
// cursor range scan over one category.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEvents, bucketAlerts, bucketUnsafeIndex, bucketAlertIndex} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping checks the database file is still open.
func (s *BoltStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

func (s *BoltStore) InsertEvent(ctx context.Context, e models.DrivingEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validCategory(e.LocationType); err != nil {
		return "", err
	}
	if err := checkTimestamp(e.Timestamp); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = newID()
	}
	e.Timestamp = e.Timestamp.UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		if b.Get([]byte(e.ID)) != nil {
			return ErrDuplicateEvent
		}
		if err := b.Put([]byte(e.ID), data); err != nil {
			return err
		}
		if e.IsSafeDriving {
			return nil
		}
		return tx.Bucket(bucketUnsafeIndex).Put(indexKey(e.LocationType, e.Timestamp, e.ID), nil)
	})
	if errors.Is(err, ErrDuplicateEvent) {
		return e.ID, err
	}
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return e.ID, nil
}

func (s *BoltStore) CountUnsafeInWindow(ctx context.Context, category string, start, end time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanWindow(tx.Bucket(bucketUnsafeIndex), category, start, end, func([]byte) bool {
			n++
			return true
		})
	})
	if err != nil {
		return 0, fmt.Errorf("count unsafe events: %w", err)
	}
	return n, nil
}

func (s *BoltStore) InsertAlert(ctx context.Context, a models.Alert) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validCategory(a.LocationType); err != nil {
		return "", err
	}
	if err := checkTimestamp(a.Timestamp); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = newID()
	}
	a.Timestamp = a.Timestamp.UTC()

	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketAlerts).Put([]byte(a.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketAlertIndex).Put(indexKey(a.LocationType, a.Timestamp, a.ID), nil)
	})
	if err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	return a.ID, nil
}

func (s *BoltStore) ExistsInWindow(ctx context.Context, category string, start, end time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanWindow(tx.Bucket(bucketAlertIndex), category, start, end, func([]byte) bool {
			found = true
			return false
		})
	})
	if err != nil {
		return false, fmt.Errorf("check alert window: %w", err)
	}
	return found, nil
}

func (s *BoltStore) FindAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var a models.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAlerts).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// scanWindow calls fn for every index key of category with start <= ts <= end,
// in timestamp order, until fn returns false.
func scanWindow(b *bolt.Bucket, category string, start, end time.Time, fn func(key []byte) bool) error {
	prefix := categoryPrefix(category)
	last := encodeTime(end)

	c := b.Cursor()
	for k, _ := c.Seek(append(prefix, encodeTime(start)...)); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		if len(k) < len(prefix)+8 {
			return fmt.Errorf("malformed index key %q", k)
		}
		if bytes.Compare(k[len(prefix):len(prefix)+8], last) > 0 {
			break
		}
		if !fn(k) {
			break
		}
	}
	return nil
}

func categoryPrefix(category string) []byte {
	p := make([]byte, 0, len(category)+1)
	p = append(p, category...)
	return append(p, 0)
}

func indexKey(category string, ts time.Time, id string) []byte {
	k := categoryPrefix(category)
	k = append(k, encodeTime(ts)...)
	return append(k, id...)
}

// encodeTime maps a time onto 8 bytes whose byte order matches time order,
// including instants before 1970. Query bounds outside the storable range
// are clamped to it; inserts outside it are rejected by checkTimestamp.
func encodeTime(ts time.Time) []byte {
	switch {
	case ts.Before(minTimestamp):
		ts = minTimestamp
	case ts.After(maxTimestamp):
		ts = maxTimestamp
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ts.UnixNano())^(1<<63))
	return b
}

func validCategory(category string) error {
	if category == "" {
		return errors.New("locationType required")
	}
	if strings.IndexByte(category, 0) >= 0 {
		return fmt.Errorf("locationType %q contains a NUL byte", category)
	}
	return nil
}
