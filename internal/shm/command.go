package shm

import "fmt"

// callShmSize is the per-worker slot size in the call-worker command
// region (§6: "num_workers x 1024 bytes"). Only the first 8 bytes are
// used; the rest is reserved, matching the reference layout exactly.
const callShmSize = 1024

// CommandRegion is the fixed-size command channel the front end uses to
// hand a (call_id, function_id) pair to a specific worker slot. One
// CommandRegion is shared by the parent and every worker; slot i belongs
// to worker i.
type CommandRegion struct {
	region     *Region
	numWorkers int
}

// OpenCommandRegion maps (or creates) the command region at path, sized
// for numWorkers slots.
func OpenCommandRegion(path string, numWorkers int) (*CommandRegion, error) {
	region, err := OpenRegion(path, numWorkers*callShmSize)
	if err != nil {
		return nil, fmt.Errorf("opening command region: %w", err)
	}
	return &CommandRegion{region: region, numWorkers: numWorkers}, nil
}

func (c *CommandRegion) Close() error { return c.region.Close() }

func (c *CommandRegion) slot(worker int) []byte {
	off := worker * callShmSize
	return c.region.Bytes()[off : off+callShmSize]
}

// WriteCommand posts callID/functionID into worker's slot. The front end
// must post the worker's function-ready semaphore immediately afterward;
// the semaphore is the only memory-order barrier between writer and
// reader.
func (c *CommandRegion) WriteCommand(worker, callID, functionID int) {
	slot := c.slot(worker)
	putUint32(slot[0:4], uint32(callID))
	putUint32(slot[4:8], uint32(functionID))
}

// ReadCommand reads back the (call_id, function_id) pair most recently
// posted to worker's slot.
func (c *CommandRegion) ReadCommand(worker int) (callID, functionID int) {
	slot := c.slot(worker)
	return int(getUint32(slot[0:4])), int(getUint32(slot[4:8]))
}
