package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
)

const boltRootBucket = "components"

// BoltArchive stores raw snapshot payloads inside a BoltDB file.
type BoltArchive struct {
	db   *bolt.DB
	once sync.Once
}

// NewBoltArchive opens (or creates) a BoltDB archive at the provided path.
func NewBoltArchive(path string) (*BoltArchive, error) {
	if path == "" {
		return nil, errors.New("archive path is required")
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(cleaned, 0o600, nil)
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltRootBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltArchive{db: db}, nil
}

// Store writes a payload under componentKey/versionID.
func (a *BoltArchive) Store(ctx context.Context, componentKey, versionID string, data []byte) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		root := tx.Bucket([]byte(boltRootBucket))
		if root == nil {
			return errors.New("archive root bucket missing")
		}

		bucket, err := root.CreateBucketIfNotExists([]byte(componentKey))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(versionID), data)
	})
}

// Fetch retrieves the payload for componentKey/versionID.
func (a *BoltArchive) Fetch(ctx context.Context, componentKey, versionID string) ([]byte, error) {
	var result []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		root := tx.Bucket([]byte(boltRootBucket))
		if root == nil {
			return &NotFoundError{Resource: "archive", Key: versionID}
		}
		bucket := root.Bucket([]byte(componentKey))
		if bucket == nil {
			return &NotFoundError{Resource: "archive", Key: versionID}
		}
		data := bucket.Get([]byte(versionID))
		if data == nil {
			return &NotFoundError{Resource: "archive", Key: versionID}
		}
		result = append([]byte{}, data...)
		return nil
	})
	return result, err
}

// Remove deletes the payload (best-effort).
func (a *BoltArchive) Remove(ctx context.Context, componentKey, versionID string) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		root := tx.Bucket([]byte(boltRootBucket))
		if root == nil {
			return nil
		}
		bucket := root.Bucket([]byte(componentKey))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(versionID))
	})
}

// Close shuts down the Bolt DB.
func (a *BoltArchive) Close() error {
	a.once.Do(func() {
		_ = a.db.Close()
	})
	return nil
}
