package database

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franckalain/halalscan/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Bucket layout: scans/<userID>/{by_time,by_id}. by_time keys are the big-endian
// creation time in milliseconds followed by the scan id, so a reverse cursor walk
// yields newest first. by_id maps a scan id to its by_time key.
var (
	bucketScans  = []byte("scans")
	bucketByTime = []byte("by_time")
	bucketByID   = []byte("by_id")
)

// BoltDB implements the DB interface on an embedded bbolt file
type BoltDB struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBoltDB opens (or creates) a bbolt database at the given path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketScans)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init: %w", err)
	}
	return &BoltDB{db: db, now: time.Now}, nil
}

func timeKey(createdAt time.Time, id string) []byte {
	key := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(createdAt.UnixMilli()))
	copy(key[8:], id)
	return key
}

// SaveScan saves a scan to the user's history
func (s *BoltDB) SaveScan(ctx context.Context, userID, imageURI string, result models.ScanResult) (*models.ScanRecord, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	rec := newRecord(userID, imageURI, result, s.now())
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal scan: %w", err)
	}
	key := timeKey(rec.CreatedAt, rec.ID)

	err = s.db.Update(func(tx *bolt.Tx) error {
		user, err := tx.Bucket(bucketScans).CreateBucketIfNotExists([]byte(userID))
		if err != nil {
			return err
		}
		byTime, err := user.CreateBucketIfNotExists(bucketByTime)
		if err != nil {
			return err
		}
		byID, err := user.CreateBucketIfNotExists(bucketByID)
		if err != nil {
			return err
		}
		if err := byTime.Put(key, value); err != nil {
			return err
		}
		return byID.Put([]byte(rec.ID), key)
	})
	if err != nil {
		return nil, fmt.Errorf("save scan: %w", err)
	}
	return rec, nil
}

// userBuckets returns the by_time and by_id buckets of userID, or nils when the
// user has no history
func userBuckets(tx *bolt.Tx, userID string) (byTime, byID *bolt.Bucket) {
	if userID == "" {
		return nil, nil
	}
	user := tx.Bucket(bucketScans).Bucket([]byte(userID))
	if user == nil {
		return nil, nil
	}
	return user.Bucket(bucketByTime), user.Bucket(bucketByID)
}

// GetScan retrieves one of the user's scans
func (s *BoltDB) GetScan(ctx context.Context, userID, id string) (*models.ScanRecord, error) {
	var rec *models.ScanRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		byTime, byID := userBuckets(tx, userID)
		if byTime == nil || byID == nil {
			return ErrNotFound
		}
		key := byID.Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		v := byTime.Get(key)
		if v == nil {
			return ErrNotFound
		}
		rec = &models.ScanRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListScans retrieves the most recent scans of a user
func (s *BoltDB) ListScans(ctx context.Context, userID string, limit int) ([]*models.ScanRecord, error) {
	limit = historyLimit(limit)
	results := []*models.ScanRecord{}

	err := s.db.View(func(tx *bolt.Tx) error {
		byTime, _ := userBuckets(tx, userID)
		if byTime == nil {
			return nil
		}
		c := byTime.Cursor()
		for k, v := c.Last(); k != nil && len(results) < limit; k, v = c.Prev() {
			var rec models.ScanRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal scan: %w", err)
			}
			results = append(results, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteScan removes one of the user's scans
func (s *BoltDB) DeleteScan(ctx context.Context, userID, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		byTime, byID := userBuckets(tx, userID)
		if byTime == nil || byID == nil {
			return ErrNotFound
		}
		key := byID.Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		// key is only valid inside the transaction; delete from by_time first.
		if err := byTime.Delete(key); err != nil {
			return err
		}
		return byID.Delete([]byte(id))
	})
}

// Close closes the underlying bbolt database
func (s *BoltDB) Close() error {
	return s.db.Close()
}
