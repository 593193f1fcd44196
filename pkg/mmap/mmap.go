// Package mmap maps feed files read-only into memory so that the boundary
// tracker can slice fragments out of the document without copying it.
package mmap

import (
	"os"
	"sync"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	mu     sync.Mutex
	data   []byte
	mapped bool
	path   string
}

// Open maps path. An empty file yields an empty, unmapped view.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").WithDetail("path", path)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", path)
	}
	size := stat.Size()
	if size == 0 {
		return &Mapping{path: path}, nil
	}
	if int64(int(size)) != size {
		return nil, errors.Newf(errors.ErrorTypeFile, "file too large to map: %d bytes", size).WithDetail("path", path)
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to map file").WithDetail("path", path)
	}
	return &Mapping{data: data, mapped: mapped, path: path}, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *Mapping) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Len returns the file size.
func (m *Mapping) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Path returns the mapped file name.
func (m *Mapping) Path() string { return m.path }

// Close unmaps the file. It is safe to call more than once.
func (m *Mapping) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	var err error
	if m.mapped {
		err = unmapFile(m.data)
	}
	m.data = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to unmap file").WithDetail("path", m.path)
	}
	return nil
}
