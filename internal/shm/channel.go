package shm

// Channel binds the small-object pool and the named-segment directory
// together behind the single read/write API described in §4.A: try the
// small slot first, fall back to a named segment keyed by (direction,
// call_id) when the payload is too large.
type Channel struct {
	Pool   *Pool
	Dir    string
	Port   int
}

func NewChannel(pool *Pool, dir string, port int) *Channel {
	return &Channel{Pool: pool, Dir: dir, Port: port}
}

// WriteArgs publishes content as call-id's argument payload.
func (c *Channel) WriteArgs(callID int, content []byte) error {
	if c.Pool.TryWrite(callID, content) {
		return nil
	}
	return WriteSegment(c.Dir, ArgsSegmentName(c.Port, callID), content)
}

// ReadArgs consumes call-id's argument payload.
func (c *Channel) ReadArgs(callID int) ([]byte, error) {
	if b, ok := c.Pool.TryRead(callID); ok {
		return b, nil
	}
	return ReadSegment(c.Dir, ArgsSegmentName(c.Port, callID))
}

// WriteResult publishes content as call-id's result payload.
func (c *Channel) WriteResult(callID int, content []byte) error {
	if c.Pool.TryWrite(callID, content) {
		return nil
	}
	return WriteSegment(c.Dir, ResultSegmentName(c.Port, callID), content)
}

// ReadResult consumes call-id's result payload.
func (c *Channel) ReadResult(callID int) ([]byte, error) {
	if b, ok := c.Pool.TryRead(callID); ok {
		return b, nil
	}
	return ReadSegment(c.Dir, ResultSegmentName(c.Port, callID))
}
