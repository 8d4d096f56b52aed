// Package storage defines the file-system abstraction behind the offline store.
package storage

import "time"

// FileMeta describes a stored file.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for offline file operations. Paths are relative
// to the provider root.
type Provider interface {
	// List returns metadata for every file under dir with the given suffix.
	List(dir, suffix string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Root returns the absolute root directory.
	Root() string
}
