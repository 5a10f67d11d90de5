package shm

import (
	"fmt"
)

// slotHeaderSize is the [occupied int32][length int32] prefix in front of
// every small-object slot's payload.
const slotHeaderSize = 8

// Pool is the small-object fast path: a single pre-mapped region of
// maxCallID slots, slot i reserved for call-id i. A slot is shared in turn
// by the args write/read and the later result write/read of the same call,
// since the two phases never overlap for one call-id.
type Pool struct {
	region       *Region
	slotSize     int // small_obj_shm_size: slotHeaderSize + small_obj_size
	smallObjSize int // small_obj_size: the largest payload the slot can hold
	maxCallID    int
}

// OpenPool maps (or creates) the small-object pool file at path, sized for
// maxCallID slots of slotHeaderSize+smallObjSize bytes each.
func OpenPool(path string, maxCallID, smallObjSize int) (*Pool, error) {
	slotSize := slotHeaderSize + smallObjSize
	region, err := OpenRegion(path, maxCallID*slotSize)
	if err != nil {
		return nil, fmt.Errorf("opening small-object pool: %w", err)
	}
	return &Pool{region: region, slotSize: slotSize, smallObjSize: smallObjSize, maxCallID: maxCallID}, nil
}

// Close unmaps the pool without removing the backing file.
func (p *Pool) Close() error { return p.region.Close() }

// SmallObjSize is the payload-size cutoff for the small-object fast path.
func (p *Pool) SmallObjSize() int { return p.smallObjSize }

func (p *Pool) slot(callID int) []byte {
	off := callID * p.slotSize
	return p.region.Bytes()[off : off+p.slotSize]
}

// TryWrite writes content into call-id's slot and marks it occupied. It
// reports false without writing anything if content is too large for the
// slot, so the caller falls back to a named segment.
func (p *Pool) TryWrite(callID int, content []byte) bool {
	if len(content) > p.smallObjSize {
		return false
	}
	slot := p.slot(callID)
	putUint32(slot[4:8], uint32(len(content)))
	copy(slot[slotHeaderSize:], content)
	// occupied is set last: it is the publish barrier a concurrent reader
	// polls for, mirroring the semaphore-as-sole-barrier rule for the
	// named-segment path.
	putUint32(slot[0:4], 1)
	return true
}

// TryRead returns call-id's slot payload and clears occupied, or reports
// false if the slot was never written (the caller must then try the named
// segment for this call-id).
func (p *Pool) TryRead(callID int) ([]byte, bool) {
	slot := p.slot(callID)
	if getUint32(slot[0:4]) == 0 {
		return nil, false
	}
	length := getUint32(slot[4:8])
	out := make([]byte, length)
	copy(out, slot[slotHeaderSize:slotHeaderSize+int(length)])
	putUint32(slot[0:4], 0)
	return out, true
}
