package buffer

import "bufpool/pkg/storage/page"

// ReadPageGuard is a scoped, shared handle over a resident page. Only
// BufferPoolManager may construct one. A live ReadPageGuard implies the
// frame's shared latch is held and the frame's pin count is at least 1.
type ReadPageGuard struct {
	pageID   page.PageID
	frame    *FrameHeader
	replacer Replacer
	valid    bool
}

// newReadPageGuard assumes frame's latch is already held in shared mode
// by the caller (BufferPoolManager), and that the caller has already
// incremented the frame's pin count and marked it non-evictable.
func newReadPageGuard(pageID page.PageID, frame *FrameHeader, replacer Replacer) *ReadPageGuard {
	if frame == nil {
		panic("buffer: constructed a read guard with a nil frame")
	}
	return &ReadPageGuard{pageID: pageID, frame: frame, replacer: replacer, valid: true}
}

// PageID returns the page id this guard protects.
func (g *ReadPageGuard) PageID() page.PageID {
	g.mustBeValid()
	return g.pageID
}

// Data returns an immutable view of the page's bytes.
func (g *ReadPageGuard) Data() []byte {
	g.mustBeValid()
	return g.frame.Data()
}

// IsDirty reports the frame's current dirty flag.
func (g *ReadPageGuard) IsDirty() bool {
	g.mustBeValid()
	return g.frame.IsDirty()
}

// Drop releases the guard: decrements the pin count, marks the frame
// evictable if the pin count reached zero, then releases the shared
// latch. Idempotent; a no-op on an already-dropped or moved-from guard.
func (g *ReadPageGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false

	if g.frame.pinCount.Add(-1) == 0 {
		g.replacer.SetEvictable(g.frame.id, true)
	}
	g.frame.latch.RUnlock()
}

// Move transfers ownership of the guard to a new handle, invalidating
// the receiver. Go has no move semantics, so this is the explicit
// analogue of the source's move constructor.
func (g *ReadPageGuard) Move() *ReadPageGuard {
	g.mustBeValid()
	moved := &ReadPageGuard{pageID: g.pageID, frame: g.frame, replacer: g.replacer, valid: true}
	g.valid = false
	g.frame = nil
	g.replacer = nil
	return moved
}

func (g *ReadPageGuard) mustBeValid() {
	if !g.valid {
		panic("buffer: use of an invalid (dropped or moved-from) read guard")
	}
}

// WritePageGuard is a scoped, exclusive handle over a resident page.
// Only BufferPoolManager may construct one. Between the creation of any
// WritePageGuard on a frame and its Drop, no other guard for that frame
// exists.
type WritePageGuard struct {
	pageID   page.PageID
	frame    *FrameHeader
	replacer Replacer
	valid    bool
}

// newWritePageGuard assumes frame's latch is already held in exclusive
// mode by the caller, and that the caller has already incremented the
// frame's pin count and marked it non-evictable.
func newWritePageGuard(pageID page.PageID, frame *FrameHeader, replacer Replacer) *WritePageGuard {
	if frame == nil {
		panic("buffer: constructed a write guard with a nil frame")
	}
	return &WritePageGuard{pageID: pageID, frame: frame, replacer: replacer, valid: true}
}

// PageID returns the page id this guard protects.
func (g *WritePageGuard) PageID() page.PageID {
	g.mustBeValid()
	return g.pageID
}

// Data returns an immutable view of the page's bytes.
func (g *WritePageGuard) Data() []byte {
	g.mustBeValid()
	return g.frame.Data()
}

// DataMut returns a mutable view of the page's bytes. The first call
// after acquiring the guard marks the frame dirty.
func (g *WritePageGuard) DataMut() []byte {
	g.mustBeValid()
	return g.frame.DataMut()
}

// IsDirty reports the frame's current dirty flag.
func (g *WritePageGuard) IsDirty() bool {
	g.mustBeValid()
	return g.frame.IsDirty()
}

// Drop releases the guard: decrements the pin count, marks the frame
// evictable if the pin count reached zero, then releases the exclusive
// latch. Idempotent; a no-op on an already-dropped or moved-from guard.
func (g *WritePageGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false

	if g.frame.pinCount.Add(-1) == 0 {
		g.replacer.SetEvictable(g.frame.id, true)
	}
	g.frame.latch.Unlock()
}

// Move transfers ownership of the guard to a new handle, invalidating
// the receiver.
func (g *WritePageGuard) Move() *WritePageGuard {
	g.mustBeValid()
	moved := &WritePageGuard{pageID: g.pageID, frame: g.frame, replacer: g.replacer, valid: true}
	g.valid = false
	g.frame = nil
	g.replacer = nil
	return moved
}

func (g *WritePageGuard) mustBeValid() {
	if !g.valid {
		panic("buffer: use of an invalid (dropped or moved-from) write guard")
	}
}
