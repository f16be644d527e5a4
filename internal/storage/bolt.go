package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// rootBucket holds one nested bucket per namespace
	rootBucket = "namespaces"

	// metaBucket holds storage bookkeeping
	metaBucket = "_meta"

	schemaVersion = "1"
)

// BoltStorage is a bbolt implementation of the Storage interface
type BoltStorage struct {
	db *bbolt.DB
}

// NewBoltStorage opens (or creates) the database file at path
func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(rootBucket)); err != nil {
			return fmt.Errorf("failed to create namespaces bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return fmt.Errorf("failed to create meta bucket: %w", err)
		}
		if meta.Get([]byte("schema")) == nil {
			return meta.Put([]byte("schema"), []byte(schemaVersion))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

func namespaceBucket(tx *bbolt.Tx, namespace string, create bool) (*bbolt.Bucket, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	root := tx.Bucket([]byte(rootBucket))
	if root == nil {
		return nil, fmt.Errorf("namespaces bucket not found")
	}
	if !create {
		return root.Bucket([]byte(namespace)), nil
	}
	b, err := root.CreateBucketIfNotExists([]byte(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to create namespace bucket %q: %w", namespace, err)
	}
	return b, nil
}

// get returns a copy of the value stored under key
func (s *BoltStorage) get(namespace, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := namespaceBucket(tx, namespace, false)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrNotFound
		}

		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})

	return value, err
}

// GetJSON retrieves and unmarshals a JSON value by key
func (s *BoltStorage) GetJSON(namespace, key string, v interface{}) error {
	data, err := s.get(namespace, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a JSON value by key, creating the namespace
// on first use
func (s *BoltStorage) SetJSON(namespace, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := namespaceBucket(tx, namespace, true)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes a key
func (s *BoltStorage) Delete(namespace, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := namespaceBucket(tx, namespace, false)
		if err != nil || b == nil {
			return err
		}
		return b.Delete([]byte(key))
	})
}

// Close closes the storage
func (s *BoltStorage) Close() error {
	return s.db.Close()
}
