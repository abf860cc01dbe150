// Package boltkv is a BoltDB-backed reference implementation of
// durable.KV, grounded on the BoltStore in the companion example pack's
// internal/store/bolt.go (open-and-create-bucket-on-New, Get/Put/Delete
// inside db.View/db.Update transactions).
package boltkv

import (
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("engine")

// Store persists durable.KV entries to a BoltDB file on disk.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) a BoltDB database at path and ensures its bucket
// exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return nil
		}
		out = make([]byte, len(raw))
		copy(out, raw)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *Store) Set(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
}

func (s *Store) Remove(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}
