package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/storage"
)

// FileBackend names the file store in Status reports. It is not selectable as
// a cache backend.
const FileBackend Backend = "file"

const fileSuffix = ".kv"

var fileKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// File keeps one small file per key under dir of a storage provider. Writes
// are atomic and survive restarts.
type File struct {
	store storage.Provider
	dir   string
}

var _ Store = (*File)(nil)

// NewFile returns a store writing to dir, relative to the provider root.
func NewFile(store storage.Provider, dir string) *File {
	return &File{store: store, dir: dir}
}

func (f *File) path(key string) (string, error) {
	if !fileKeyPattern.MatchString(key) {
		return "", fmt.Errorf("kvstore: invalid file key %q: %w", key, apperr.ErrInvalidInput)
	}
	return path.Join(f.dir, key+fileSuffix), nil
}

// Get returns the value stored under key.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	raw, err := f.store.Read(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	return raw, err
}

// Set atomically replaces the value under key.
func (f *File) Set(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	return f.store.Write(p, value)
}

// Delete removes key. A missing key is not an error.
func (f *File) Delete(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := f.store.Delete(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Status counts the keys held.
func (f *File) Status(context.Context) (Status, error) {
	files, err := f.store.List(f.dir, fileSuffix)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Status{Backend: string(FileBackend)}, err
	}
	st := Status{Backend: string(FileBackend), Connected: true, TotalEntries: len(files)}
	for _, m := range files {
		if m.UpdatedAt.After(st.LastEntryTime) {
			st.LastEntryTime = m.UpdatedAt
		}
	}
	return st, nil
}

// Close is a no-op.
func (f *File) Close() error { return nil }
