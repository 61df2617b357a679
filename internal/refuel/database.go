package refuel

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	recordBucketName = "records"
	scanBucketName   = "scans"
)

// DB defines the interface for database operations
type DB interface {
	// SaveRecord saves a refueling record to the database
	SaveRecord(record *Record) error

	// GetRecord retrieves a record by ID
	GetRecord(id string) (*Record, error)

	// ListRecords returns the full record snapshot
	ListRecords() ([]*Record, error)

	// DeleteRecord removes a record from the database
	DeleteRecord(id string) error

	// SaveScan saves an archived scan to the database
	SaveScan(scan *Scan) error

	// GetScan retrieves a scan by ID
	GetScan(id string) (*Scan, error)

	// ListScans returns all archived scans
	ListScans() ([]*Scan, error)

	// DeleteScan removes a scan from the database
	DeleteScan(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(scanBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveRecord saves a refueling record to the database
func (b *BoltDB) SaveRecord(record *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetRecord retrieves a record by ID
func (b *BoltDB) GetRecord(id string) (*Record, error) {
	var record *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("record not found: %s", id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecords returns the full record snapshot
func (b *BoltDB) ListRecords() ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecord removes a record from the database
func (b *BoltDB) DeleteRecord(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveScan saves an archived scan to the database
func (b *BoltDB) SaveScan(scan *Scan) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		data, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("marshaling scan: %w", err)
		}
		return bucket.Put([]byte(scan.ID), data)
	})
}

// GetScan retrieves a scan by ID
func (b *BoltDB) GetScan(id string) (*Scan, error) {
	var scan *Scan
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("scan not found: %s", id)
		}
		return json.Unmarshal(data, &scan)
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// ListScans returns all archived scans
func (b *BoltDB) ListScans() ([]*Scan, error) {
	scans := make([]*Scan, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var scan Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return fmt.Errorf("unmarshaling scan: %w", err)
			}
			scans = append(scans, &scan)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return scans, nil
}

// DeleteScan removes a scan from the database
func (b *BoltDB) DeleteScan(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(scanBucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
