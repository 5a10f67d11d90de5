// Package shm implements the two-tier shared-memory channel and the
// SysV-semaphore completion signalling that front-end and worker processes
// use to exchange call arguments and results.
package shm

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Region is a long-lived mmapped file, used for structures that stay mapped
// for the lifetime of the process: the call-worker command region and the
// small-object pool. Unlike the one-shot named segments in segment.go, a
// Region is opened once and closed (not unlinked) by every process that
// maps it; only the parent unlinks the backing file on teardown.
type Region struct {
	data []byte
	f    *os.File
}

// OpenRegion maps size bytes of path, creating and zero-filling the file if
// it does not already exist at that size.
func OpenRegion(path string, size int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return nil, fmt.Errorf("opening region %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat region %s: %w", path, err)
	}
	if info.Size() != int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncating region %s to %d: %w", path, size, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap region %s: %w", path, err)
	}

	return &Region{data: data, f: f}, nil
}

// Bytes returns the mapped region. Callers must not retain slices across a
// Close.
func (r *Region) Bytes() []byte { return r.data }

// Close unmaps and closes the file descriptor without unlinking the
// backing path; only the owning parent process unlinks named IPC objects.
func (r *Region) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("munmap region: %w", err)
	}
	return r.f.Close()
}

// Unlink removes the backing file. Only the parent process that created the
// region should call this, during teardown.
func Unlink(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// putUint32 / getUint32 centralize the little-endian int32 header encoding
// shared by the command region slots, the small-object slots, and the
// named segment length prefix.
func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getUint32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
