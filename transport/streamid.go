package transport

import (
	"fmt"

	"github.com/nativecql/cqldriver/frame"
)

// maxStreams is the largest stream id the allocator hands out. Stream 0 is
// reserved for unsolicited EVENT frames (§4.4), so the allocator only ever
// deals in [1, maxStreams].
const maxStreams = 32767

// streamIDAllocator hands out free stream ids in [1, 32767] and enforces
// that an id currently in flight is never handed out again (§3 Session
// invariant, §4.4, §8 boundary property). Not safe for concurrent use on its
// own; connReader guards it with its own mutex.
type streamIDAllocator struct {
	inUse []bool // index 0 unused; inUse[id] tracks id in [1, maxStreams]
	next  frame.StreamID
}

func newStreamIDAllocator() streamIDAllocator {
	return streamIDAllocator{inUse: make([]bool, maxStreams+1), next: 0}
}

// Alloc returns a free stream id, wrapping around [1, maxStreams] from
// wherever the last allocation left off. Returns an error if every id is
// currently in flight on this connection.
func (s *streamIDAllocator) Alloc() (frame.StreamID, error) {
	if len(s.inUse) == 0 {
		*s = newStreamIDAllocator()
	}
	for i := 0; i < maxStreams; i++ {
		if s.next >= maxStreams {
			s.next = 1
		} else {
			s.next++
		}
		if !s.inUse[s.next] {
			s.inUse[s.next] = true
			return s.next, nil
		}
	}
	return 0, fmt.Errorf("transport: no free stream ids: %d requests in flight", maxStreams)
}

// Free releases id back to the pool.
func (s *streamIDAllocator) Free(id frame.StreamID) {
	if id > 0 && int(id) < len(s.inUse) {
		s.inUse[id] = false
	}
}
