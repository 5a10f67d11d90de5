package shm

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// segmentHeaderSize is the int32 length prefix in front of every named
// segment's payload (offset 0 = length L, bytes [4, 4+L) = payload).
const segmentHeaderSize = 4

// WriteSegment creates (or replaces) a named shared-memory segment under dir
// holding content, sized exactly to content+4 bytes as the reference design
// requires — no slack for a later larger write.
func WriteSegment(dir, name string, content []byte) error {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return fmt.Errorf("creating segment %s: %w", name, err)
	}
	defer f.Close()

	size := segmentHeaderSize + len(content)
	if err := f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("truncating segment %s: %w", name, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap segment %s: %w", name, err)
	}
	defer unix.Munmap(data)

	putUint32(data[:segmentHeaderSize], uint32(len(content)))
	copy(data[segmentHeaderSize:], content)
	return nil
}

// ReadSegment opens a named segment read-only, copies its payload out, then
// unmaps, closes and unlinks it — the consumer always owns cleanup.
func ReadSegment(dir, name string) ([]byte, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDONLY, 0o666)
	if err != nil {
		return nil, fmt.Errorf("opening segment %s: %w", name, err)
	}
	defer func() {
		f.Close()
		os.Remove(path)
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment %s: %w", name, err)
	}
	size := info.Size()
	if size < segmentHeaderSize {
		return nil, fmt.Errorf("segment %s truncated: size %d", name, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap segment %s: %w", name, err)
	}
	defer unix.Munmap(data)

	length := getUint32(data[:segmentHeaderSize])
	end := segmentHeaderSize + int(length)
	if end > len(data) {
		return nil, fmt.Errorf("segment %s declares length %d beyond mapped size %d", name, length, len(data))
	}

	out := make([]byte, length)
	copy(out, data[segmentHeaderSize:end])
	return out, nil
}

// ArgsSegmentName and ResultSegmentName build the per-call-id named segment
// names from §6: "/args_<port>_<call_id>" and "/result_<port>_<call_id>".
// The leading slash of the reference POSIX shm names is dropped since these
// are plain filenames under dir, not shm_open identifiers.
func ArgsSegmentName(port, callID int) string {
	return fmt.Sprintf("args_%d_%d", port, callID)
}

func ResultSegmentName(port, callID int) string {
	return fmt.Sprintf("result_%d_%d", port, callID)
}

// UnlinkDangling removes any args/result segments for call-ids in
// [0, maxCallID) that were created but never consumed — used during parent
// teardown to sweep segments orphaned by a worker that died mid-call.
func UnlinkDangling(dir string, port, maxCallID int) {
	for callID := 0; callID < maxCallID; callID++ {
		for _, name := range []string{ArgsSegmentName(port, callID), ResultSegmentName(port, callID)} {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}
