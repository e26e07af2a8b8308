// Package storage defines the blob file-system abstraction used for uploaded
// documents and rendered slide artifacts.
package storage

import "time"

// Entry describes one immediate child of a storage directory.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Provider is the interface for blob operations. All paths are slash-separated
// and relative to the storage root.
type Provider interface {
	// List returns the immediate children of dir. A missing dir yields no entries.
	List(dir string) ([]Entry, error)
	// Read returns the raw bytes at path. Missing files wrap os.ErrNotExist.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Copy duplicates src to dst as an independent file.
	Copy(src, dst string) error
	// Delete removes the file at path.
	Delete(path string) error
	// DeleteAll removes dir and everything under it. A missing dir is not an error.
	DeleteAll(dir string) error
}
