package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titi-ai/titi/internal/model"
)

// FileStore keeps one JSON file per conversation in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("conversation directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Get reads a conversation file.
func (s *FileStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}
	return decode(data)
}

// Put writes the record to a temporary file and renames it into place so a
// reader never observes a half-written record.
func (s *FileStore) Put(ctx context.Context, conv *model.Conversation) error {
	if !validID(conv.ID) {
		return fmt.Errorf("invalid conversation id %q", conv.ID)
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, conv.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync conversation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close conversation file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(conv.ID)); err != nil {
		return fmt.Errorf("failed to replace conversation file: %w", err)
	}
	return nil
}

// Delete removes a conversation file.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// List reads every conversation file. Unreadable or malformed files are skipped.
func (s *FileStore) List(ctx context.Context) ([]*model.Conversation, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation directory: %w", err)
	}

	convs := make([]*model.Conversation, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		conv, err := decode(data)
		if err != nil {
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

func decode(data []byte) (*model.Conversation, error) {
	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if conv.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrCorrupt)
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	return &conv, nil
}
