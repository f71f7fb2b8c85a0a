package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const backendFile = "file"

// FileStore writes payloads as files in one directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a store writing into dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("destination directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", abs, err)
	}
	return &FileStore{dir: abs}, nil
}

// Dir returns the absolute destination directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns where name is written.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Save writes payload to dir/name. The file appears atomically: it is written
// to a temporary file first and renamed into place.
func (s *FileStore) Save(ctx context.Context, payload []byte, name string) error {
	err := s.save(ctx, payload, name)
	recordSave(backendFile, len(payload), err)
	return err
}

func (s *FileStore) save(ctx context.Context, payload []byte, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("name %q must not contain path separators", name)
	}
	return nil
}
