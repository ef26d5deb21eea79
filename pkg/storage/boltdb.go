package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/agent-snapper/pkg/types"
)

var (
	// Bucket names; each holds one nested bucket per snap
	bucketOutcomes = []byte("outcomes")
	bucketDeferred = []byte("deferred")
)

// DefaultOutcomeRetention is how many outcomes are kept per snap
const DefaultOutcomeRetention = 500

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db        *bolt.DB
	retention int
}

// NewBoltStore opens (or creates) the journal under dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "agent-snapper.db")

	// dispatch and serve may share the file; wait briefly for the lock
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketOutcomes, bucketDeferred} {
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

	return &BoltStore{db: db, retention: DefaultOutcomeRetention}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Outcome operations

// RecordOutcome appends an outcome and prunes the oldest beyond retention
func (s *BoltStore) RecordOutcome(record *types.OutcomeRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketOutcomes).CreateBucketIfNotExists([]byte(record.Snap))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), data); err != nil {
			return err
		}
		return prune(b, s.retention)
	})
}

// LastOutcome returns the most recent outcome for snap
func (s *BoltStore) LastOutcome(snap string) (*types.OutcomeRecord, error) {
	var record types.OutcomeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutcomes).Bucket([]byte(snap))
		if b == nil {
			return fmt.Errorf("outcome for %s: %w", snap, ErrNotFound)
		}
		_, v := b.Cursor().Last()
		if v == nil {
			return fmt.Errorf("outcome for %s: %w", snap, ErrNotFound)
		}
		return json.Unmarshal(v, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListOutcomes returns up to limit outcomes, newest first. A limit of zero
// or less returns everything retained.
func (s *BoltStore) ListOutcomes(snap string, limit int) ([]*types.OutcomeRecord, error) {
	var records []*types.OutcomeRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOutcomes).Bucket([]byte(snap))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var record types.OutcomeRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

// Deferred event operations

// SaveDeferred upserts the pending redelivery for an event kind
func (s *BoltStore) SaveDeferred(event *types.DeferredEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketDeferred).CreateBucketIfNotExists([]byte(event.Snap))
		if err != nil {
			return err
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return b.Put([]byte(event.Kind), data)
	})
}

// GetDeferred returns the pending redelivery for an event kind
func (s *BoltStore) GetDeferred(snap string, kind types.EventKind) (*types.DeferredEvent, error) {
	var event types.DeferredEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeferred).Bucket([]byte(snap))
		if b == nil {
			return fmt.Errorf("deferred %s for %s: %w", kind, snap, ErrNotFound)
		}
		data := b.Get([]byte(kind))
		if data == nil {
			return fmt.Errorf("deferred %s for %s: %w", kind, snap, ErrNotFound)
		}
		return json.Unmarshal(data, &event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListDeferred returns every pending redelivery for snap, oldest first
func (s *BoltStore) ListDeferred(snap string) ([]*types.DeferredEvent, error) {
	var deferred []*types.DeferredEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeferred).Bucket([]byte(snap))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var event types.DeferredEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			deferred = append(deferred, &event)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(deferred, func(i, j int) bool {
		return deferred[i].Deferred.Before(deferred[j].Deferred)
	})
	return deferred, nil
}

// DeleteDeferred drops the pending redelivery for an event kind
func (s *BoltStore) DeleteDeferred(snap string, kind types.EventKind) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeferred).Bucket([]byte(snap))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(kind))
	})
}

func prune(b *bolt.Bucket, retention int) error {
	if retention <= 0 {
		return nil
	}
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for i := 0; i < len(keys)-retention; i++ {
		if err := b.Delete(keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
