package buffer

import (
	"sync"
	"sync/atomic"

	"bufpool/pkg/storage/page"
)

// FrameID is a dense index into the buffer pool manager's frame array,
// 0..numFrames.
type FrameID int

// FrameHeader is one in-memory slot: a fixed-size byte buffer plus the
// metadata that tracks what page (if any) currently occupies it.
//
// pinCount is atomic so BufferPoolManager.PinCount can be read without
// the pool latch (spec.md §5). Everything else is protected either by
// the pool latch (pageID, while the frame is being installed into or
// removed from the page map) or by latch (data, isDirty, for the
// duration of any live guard).
type FrameHeader struct {
	id       FrameID
	data     []byte
	pageID   page.PageID
	pinCount atomic.Int64
	isDirty  bool
	latch    sync.RWMutex
}

func newFrameHeader(id FrameID) *FrameHeader {
	f := &FrameHeader{
		id:     id,
		data:   make([]byte, page.PageSize),
		pageID: page.InvalidPageID,
	}
	return f
}

// ID returns the frame's index in the pool's frame array.
func (f *FrameHeader) ID() FrameID { return f.id }

// PageID returns the page currently resident in this frame, or
// page.InvalidPageID if the frame is free.
func (f *FrameHeader) PageID() page.PageID { return f.pageID }

// PinCount atomically loads the current pin count.
func (f *FrameHeader) PinCount() int64 { return f.pinCount.Load() }

// IsDirty reports the frame's dirty flag. Callers holding a guard on the
// frame already hold the latch that makes this safe to read; callers
// without one should not rely on the result staying current.
func (f *FrameHeader) IsDirty() bool { return f.isDirty }

// Data returns an immutable view of the frame's buffer.
func (f *FrameHeader) Data() []byte { return f.data }

// DataMut returns a mutable view of the frame's buffer and marks it
// dirty. Callers must hold the frame's latch in exclusive mode.
func (f *FrameHeader) DataMut() []byte {
	f.isDirty = true
	return f.data
}

// Reset clears a frame's identity and zeroes its buffer: called when a
// frame returns to the free list, and mid-bring-in before new page data
// is read in. It does not touch the pin count — DeletePage only calls
// this once the frame's pin count is already zero, and a bring-in has
// already pinned the frame by the time it calls this, before the pin is
// visible to any other page.
func (f *FrameHeader) Reset() {
	for i := range f.data {
		f.data[i] = 0
	}
	f.pageID = page.InvalidPageID
	f.isDirty = false
}
