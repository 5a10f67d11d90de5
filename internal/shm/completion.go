package shm

import "fmt"

// CompletionArray is the dense array of per-call-id completion semaphores
// from §4.B. A single SysV semaphore set holds at most semsPerSet members
// (a configured value that must not exceed the kernel's SEMMSL), so call-ids are sharded across as many SemSets as
// maxCallID requires: call-id c lives in set c/semsPerSet, slot
// c%semsPerSet.
type CompletionArray struct {
	sets       []*SemSet
	semsPerSet int
	maxCallID  int
}

// NewCompletionArray creates (or opens) the semaphore sets backing
// maxCallID call-ids, semsPerSet slots per set. baseKey is the SysV key of
// the first set; subsequent sets use baseKey+1, baseKey+2, ...
func NewCompletionArray(baseKey, maxCallID, semsPerSet int) (*CompletionArray, error) {
	if semsPerSet < 1 {
		return nil, fmt.Errorf("semsPerSet must be positive, got %d", semsPerSet)
	}
	numSets := (maxCallID + semsPerSet - 1) / semsPerSet
	sets := make([]*SemSet, numSets)
	for i := 0; i < numSets; i++ {
		nsems := semsPerSet
		if remaining := maxCallID - i*semsPerSet; remaining < nsems {
			nsems = remaining
		}
		set, err := NewSemSet(baseKey+i, nsems)
		if err != nil {
			for j := 0; j < i; j++ {
				sets[j].Remove()
			}
			return nil, fmt.Errorf("creating completion set %d: %w", i, err)
		}
		sets[i] = set
	}
	return &CompletionArray{sets: sets, semsPerSet: semsPerSet, maxCallID: maxCallID}, nil
}

func (c *CompletionArray) locate(callID int) (*SemSet, int, error) {
	if callID < 0 || callID >= c.maxCallID {
		return nil, 0, fmt.Errorf("call-id %d out of range [0, %d)", callID, c.maxCallID)
	}
	setIdx := callID / c.semsPerSet
	slot := callID % c.semsPerSet
	return c.sets[setIdx], slot, nil
}

// Signal marks callID's result as ready, waking the front end's Wait.
func (c *CompletionArray) Signal(callID int) error {
	set, slot, err := c.locate(callID)
	if err != nil {
		return err
	}
	return set.Post(slot)
}

// Wait blocks until callID's result is ready.
func (c *CompletionArray) Wait(callID int) error {
	set, slot, err := c.locate(callID)
	if err != nil {
		return err
	}
	return set.Wait(slot)
}

// TryWait polls callID's completion without blocking.
func (c *CompletionArray) TryWait(callID int) (bool, error) {
	set, slot, err := c.locate(callID)
	if err != nil {
		return false, err
	}
	return set.TryWait(slot)
}

// Remove destroys every backing semaphore set. Parent-only, at teardown.
func (c *CompletionArray) Remove() error {
	var firstErr error
	for _, set := range c.sets {
		if err := set.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
