package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/titi-ai/titi/internal/model"
)

var conversationsBucket = []byte("conversations")

// BoltStore keeps conversations as JSON values in a single BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns the record stored under id.
func (s *BoltStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Put writes the full record in one transaction.
func (s *BoltStore) Put(ctx context.Context, conv *model.Conversation) error {
	if !validID(conv.ID) {
		return fmt.Errorf("invalid conversation id %q", conv.ID)
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Put([]byte(conv.ID), data)
	})
}

// Delete removes the record stored under id.
func (s *BoltStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
}

// List decodes every record, skipping malformed values.
func (s *BoltStore) List(ctx context.Context) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(k, v []byte) error {
			conv, err := decode(v)
			if err != nil {
				return nil
			}
			convs = append(convs, conv)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
