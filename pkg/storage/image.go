package storage

import (
	"io"
	"os"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// Erased is the value of a byte that was never written.
const Erased = 0xFF

// Image is a byte-addressable non-volatile memory.
type Image interface {
	io.ReaderAt
	io.WriterAt
}

var (
	_ Image = (*File)(nil)
	_ Image = (*Memory)(nil)
)

// File is an EEPROM image kept in a regular file.
// The file is created in the erased state on first open.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens or creates an image file of the given size.
func OpenFile(path string, size int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open storage image %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, pkgerrors.Wrapf(err, "failed to stat storage image %s", path)
	}

	if info.Size() < int64(size) {
		erased := make([]byte, int64(size)-info.Size())
		for i := range erased {
			erased[i] = Erased
		}
		if _, err := f.WriteAt(erased, info.Size()); err != nil {
			f.Close()
			return nil, pkgerrors.Wrapf(err, "failed to format storage image %s", path)
		}
	}

	return &File{f: f, size: int64(size)}, nil
}

// ReadAt reads len(p) bytes at off.
func (s *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		return 0, pkgerrors.Errorf("read of %d bytes at %d is outside the %d byte image", len(p), off, s.size)
	}
	return s.f.ReadAt(p, off)
}

// WriteAt writes p at off and flushes it to disk.
func (s *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.size {
		return 0, pkgerrors.Errorf("write of %d bytes at %d is outside the %d byte image", len(p), off, s.size)
	}
	n, err := s.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, s.f.Sync()
}

// Close closes the image file.
func (s *File) Close() error {
	return s.f.Close()
}

// Memory is an in-memory image. It survives as long as the value does,
// which is enough to model a power cycle in tests and on the simulated board.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemory returns an erased in-memory image.
func NewMemory(size int) *Memory {
	data := make([]byte, size)
	for i := range data {
		data[i] = Erased
	}
	return &Memory{data: data}
}

// ReadAt reads len(p) bytes at off.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, pkgerrors.Errorf("read of %d bytes at %d is outside the %d byte image", len(p), off, len(m.data))
	}
	return copy(p, m.data[off:]), nil
}

// WriteAt writes p at off.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, pkgerrors.Errorf("write of %d bytes at %d is outside the %d byte image", len(p), off, len(m.data))
	}
	return copy(m.data[off:], p), nil
}
