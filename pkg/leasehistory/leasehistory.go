// Package leasehistory is an append-only audit log of RunRecords, backed
// by bbolt. In this repository only the client role appends records (one
// per completed lease-acquisition attempt); server lease commits are not
// recorded here.
// It is independent of pkg/server's LeaseStore: LeaseStore is the live,
// dirty-flagged authority the dispatcher consults on every REQUEST;
// leasehistory is a record neither the client engine nor the server
// dispatcher needs to consult to make a protocol decision (SPEC_FULL §9).
package leasehistory

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const runBucket = "runs"

// Store wraps a BoltDB instance for persisting RunRecords.
type Store struct {
	db *bbolt.DB
}

// RunRecord captures one completed lease attempt of the given Role
// (SPEC_FULL §3).
type RunRecord struct {
	ID           uint64        `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Interface    string        `json:"interface"`
	Role         string        `json:"role"` // "client" or "server"
	Outcome      string        `json:"outcome"`
	Addr         string        `json:"addr"`
	LeaseSeconds uint32        `json:"lease_seconds"`
	Duration     time.Duration `json:"duration"`
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if strings.EqualFold(path, "disabled") || path == "" {
		return nil, errors.New("leasehistory: storage disabled")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one RunRecord.
func (s *Store) Append(record RunRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runBucket))
		id, _ := b.NextSequence()
		record.ID = id

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
}

// Recent returns the most recent RunRecords, most recent first, up to
// limit (defaulting to 20).
func (s *Store) Recent(limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("leasehistory: not initialised")
	}
	if limit <= 0 {
		limit = 20
	}

	records := make([]RunRecord, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// LastClientLease returns the most recent client RunRecord for iface
// with a non-empty Addr, used to decide INIT-REBOOT eligibility
// (SPEC_FULL §4.3).
func (s *Store) LastClientLease(iface string) (RunRecord, bool, error) {
	records, err := s.Recent(100)
	if err != nil {
		return RunRecord{}, false, err
	}
	for _, r := range records {
		if r.Role == "client" && r.Interface == iface && r.Addr != "" {
			return r, true, nil
		}
	}
	return RunRecord{}, false, nil
}

func itob(v uint64) []byte {
	var b [8]byte
	for i := uint(0); i < 8; i++ {
		b[7-i] = byte(v >> (i * 8))
	}
	return b[:]
}
