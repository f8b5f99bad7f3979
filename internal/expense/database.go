package expense

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/sgrimes/expenselens/internal/category"
)

const recordsBucket = "records"

// Sub-record blob keys inside each record's bucket. Each sub-record is
// serialized independently so a schema change to one never forces a
// full-record migration.
const (
	blobCore        = "core"
	blobVendor      = "vendor"
	blobTransaction = "transaction"
	blobItems       = "items"
	blobTotals      = "totals"
	blobNotes       = "notes"
)

// DB is the persistence contract for canonical records.
type DB interface {
	// SaveRecord stores a record, every sub-record as its own blob.
	SaveRecord(rec *Record) error

	// GetRecord retrieves a record by ID.
	GetRecord(id uuid.UUID) (*Record, error)

	// ListRecords returns all records.
	ListRecords() ([]*Record, error)

	// DeleteRecord removes a record by ID.
	DeleteRecord(id uuid.UUID) error

	// Close closes the database.
	Close() error
}

// recordCore holds the scalar fields of a record; the nested sub-records are
// stored as sibling blobs.
type recordCore struct {
	ID          uuid.UUID         `json:"id"`
	RawText     string            `json:"raw_text"`
	Confidence  float64           `json:"confidence"`
	NeedsReview bool              `json:"needs_review"`
	ReceiptType string            `json:"receipt_type"`
	Category    category.Category `json:"category"`
	Source      Source            `json:"source"`
	ImageFile   string            `json:"image_file"`
	ContentType string            `json:"content_type"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// BoltDB implements DB on bbolt. Each record owns a nested bucket keyed by
// its ID, holding one blob per sub-record.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveRecord stores the record's sub-records as independent blobs.
func (b *BoltDB) SaveRecord(rec *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(recordsBucket))
		bucket, err := root.CreateBucketIfNotExists(rec.ID[:])
		if err != nil {
			return fmt.Errorf("creating record bucket: %w", err)
		}

		core := recordCore{
			ID:          rec.ID,
			RawText:     rec.RawText,
			Confidence:  rec.Confidence,
			NeedsReview: rec.NeedsReview,
			ReceiptType: rec.ReceiptType,
			Category:    rec.Category,
			Source:      rec.Source,
			ImageFile:   rec.ImageFile,
			ContentType: rec.ContentType,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		}

		blobs := map[string]any{
			blobCore:        core,
			blobVendor:      rec.Vendor,
			blobTransaction: rec.Transaction,
			blobItems:       rec.Items,
			blobTotals:      rec.Totals,
			blobNotes:       rec.Notes,
		}
		for key, v := range blobs {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("marshaling %s: %w", key, err)
			}
			if err := bucket.Put([]byte(key), data); err != nil {
				return fmt.Errorf("storing %s: %w", key, err)
			}
		}
		return nil
	})
}

// GetRecord loads a record by reassembling its sub-record blobs.
func (b *BoltDB) GetRecord(id uuid.UUID) (*Record, error) {
	var rec *Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(recordsBucket))
		bucket := root.Bucket(id[:])
		if bucket == nil {
			return fmt.Errorf("record not found: %s", id)
		}
		loaded, err := loadRecord(bucket)
		if err != nil {
			return err
		}
		rec = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords returns all records.
func (b *BoltDB) ListRecords() ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(recordsBucket))
		return root.ForEachBucket(func(k []byte) error {
			rec, err := loadRecord(root.Bucket(k))
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteRecord removes a record and all its blobs.
func (b *BoltDB) DeleteRecord(id uuid.UUID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(recordsBucket))
		if root.Bucket(id[:]) == nil {
			return fmt.Errorf("record not found: %s", id)
		}
		return root.DeleteBucket(id[:])
	})
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func loadRecord(bucket *bbolt.Bucket) (*Record, error) {
	var core recordCore
	if err := loadBlob(bucket, blobCore, &core); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:          core.ID,
		RawText:     core.RawText,
		Confidence:  core.Confidence,
		NeedsReview: core.NeedsReview,
		ReceiptType: core.ReceiptType,
		Category:    core.Category,
		Source:      core.Source,
		ImageFile:   core.ImageFile,
		ContentType: core.ContentType,
		CreatedAt:   core.CreatedAt,
		UpdatedAt:   core.UpdatedAt,
	}

	if err := loadBlob(bucket, blobVendor, &rec.Vendor); err != nil {
		return nil, err
	}
	if err := loadBlob(bucket, blobTransaction, &rec.Transaction); err != nil {
		return nil, err
	}
	if err := loadBlob(bucket, blobItems, &rec.Items); err != nil {
		return nil, err
	}
	if err := loadBlob(bucket, blobTotals, &rec.Totals); err != nil {
		return nil, err
	}
	if err := loadBlob(bucket, blobNotes, &rec.Notes); err != nil {
		return nil, err
	}
	return rec, nil
}

func loadBlob(bucket *bbolt.Bucket, key string, v any) error {
	data := bucket.Get([]byte(key))
	if data == nil {
		// tolerate blobs added after the record was written
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", key, err)
	}
	return nil
}
