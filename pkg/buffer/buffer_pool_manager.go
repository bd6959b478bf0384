package buffer

import (
	"fmt"
	"log"
	"sync"

	"bufpool/pkg/storage/disk"
	"bufpool/pkg/storage/page"
)

// defaultKDist is used when a caller does not care to tune LRU-K's
// backward-k-distance window.
const defaultKDist = 2

// accessMode selects which latch mode a bring-in should end up holding.
type accessMode int

const (
	modeRead accessMode = iota
	modeWrite
)

// BufferPoolManager is an in-memory cache of fixed-size pages backed by a
// pageable storage device: the frame table, page map, pin accounting, and
// I/O orchestration described in spec.md §4.3.
//
// Locking order: mu (the pool latch) is always acquired before, and
// released before, any frame's rw-latch — never the reverse.
type BufferPoolManager struct {
	numFrames int
	scheduler *disk.Scheduler
	replacer  Replacer

	mu         sync.Mutex // the pool latch
	nextPageID page.PageID
	frames     []*FrameHeader
	pageTable  map[page.PageID]FrameID
	freeFrames []FrameID // FIFO: head-take, tail-insert
}

// NewBufferPoolManager allocates numFrames frames up front and starts the
// disk scheduler's background worker. kDist is the backward k-distance
// for the LRU-K replacer.
func NewBufferPoolManager(numFrames int, diskManager disk.DiskManager, kDist int) *BufferPoolManager {
	if kDist < 1 {
		kDist = defaultKDist
	}

	frames := make([]*FrameHeader, numFrames)
	free := make([]FrameID, numFrames)
	for i := 0; i < numFrames; i++ {
		frames[i] = newFrameHeader(FrameID(i))
		free[i] = FrameID(i)
	}

	return &BufferPoolManager{
		numFrames:  numFrames,
		scheduler:  disk.NewScheduler(diskManager),
		replacer:   NewLRUKReplacer(numFrames, kDist),
		frames:     frames,
		pageTable:  make(map[page.PageID]FrameID, numFrames),
		freeFrames: free,
	}
}

// Size returns the number of frames this buffer pool manages.
func (b *BufferPoolManager) Size() int { return b.numFrames }

// Close joins the disk scheduler's background worker. Callers must drop
// all outstanding guards first.
func (b *BufferPoolManager) Close() { b.scheduler.Shutdown() }

// NewPage allocates a new page id and reserves disk space for it. It does
// not bring the page into memory, and never fails: disk space is assumed
// unbounded.
func (b *BufferPoolManager) NewPage() page.PageID {
	b.mu.Lock()
	defer b.mu.Unlock()

	newPageID := b.nextPageID
	b.nextPageID++

	// Inclusive: the page id just minted must itself be addressable.
	if err := b.scheduler.IncreaseDiskSpace(int(b.nextPageID)); err != nil {
		log.Fatalf("buffer pool: could not reserve disk space for page %d: %v", newPageID, err)
	}

	fmt.Printf("[BufferPool] NEW pageID=%d\n", newPageID)
	return newPageID
}

// DeletePage removes a page from both disk and memory. If the page is
// pinned, this does nothing and returns false.
func (b *BufferPoolManager) DeletePage(pageID page.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, resident := b.pageTable[pageID]
	if !resident {
		return true
	}

	frame := b.frames[frameID]
	if frame.PinCount() > 0 {
		return false
	}

	delete(b.pageTable, pageID)
	b.replacer.SetEvictable(frameID, false)

	if frame.IsDirty() {
		b.flushFrameLocked(pageID, frame)
	}

	if err := b.scheduler.Deallocate(pageID); err != nil {
		fmt.Printf("[BufferPool] deallocate pageID=%d failed: %v\n", pageID, err)
	}

	frame.Reset()
	b.freeFrames = append(b.freeFrames, frameID)

	fmt.Printf("[BufferPool] DELETE pageID=%d frame=%d\n", pageID, frameID)
	return true
}

// CheckedReadPage acquires a shared guard over pageID, bringing it into
// memory if necessary. ok is false iff no frame could be obtained (all
// frames pinned).
func (b *BufferPoolManager) CheckedReadPage(pageID page.PageID) (guard *ReadPageGuard, ok bool) {
	frame, ok := b.acquireFrame(pageID, modeRead)
	if !ok {
		return nil, false
	}
	return newReadPageGuard(pageID, frame, b.replacer), true
}

// CheckedWritePage acquires an exclusive guard over pageID, bringing it
// into memory if necessary. ok is false iff no frame could be obtained
// (all frames pinned).
func (b *BufferPoolManager) CheckedWritePage(pageID page.PageID) (guard *WritePageGuard, ok bool) {
	frame, ok := b.acquireFrame(pageID, modeWrite)
	if !ok {
		return nil, false
	}
	return newWritePageGuard(pageID, frame, b.replacer), true
}

// ReadPage is CheckedReadPage's unwrapped ergonomic wrapper. If the pool
// is out of memory, it aborts the process; use CheckedReadPage if that
// is not acceptable.
func (b *BufferPoolManager) ReadPage(pageID page.PageID) *ReadPageGuard {
	guard, ok := b.CheckedReadPage(pageID)
	if !ok {
		log.Fatalf("buffer pool: CheckedReadPage failed to bring in page %d (out of memory)", pageID)
	}
	return guard
}

// WritePage is CheckedWritePage's unwrapped ergonomic wrapper. If the
// pool is out of memory, it aborts the process; use CheckedWritePage if
// that is not acceptable.
func (b *BufferPoolManager) WritePage(pageID page.PageID) *WritePageGuard {
	guard, ok := b.CheckedWritePage(pageID)
	if !ok {
		log.Fatalf("buffer pool: CheckedWritePage failed to bring in page %d (out of memory)", pageID)
	}
	return guard
}

// FlushPage writes pageID's data out to disk if it is resident and
// dirty. Returns false if the page is not resident, or if it is resident
// but clean (nothing to do).
func (b *BufferPoolManager) FlushPage(pageID page.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, resident := b.pageTable[pageID]
	if !resident {
		return false
	}

	frame := b.frames[frameID]
	if !frame.IsDirty() {
		return false
	}

	b.flushFrameLocked(pageID, frame)
	fmt.Printf("[BufferPool] FLUSH pageID=%d\n", pageID)
	return true
}

// FlushAllPages flushes every resident dirty page. Best-effort: not
// atomic with respect to concurrent guard acquisition, since the set of
// resident pages is only snapshotted, not held stable, across the whole
// call.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	ids := make([]page.PageID, 0, len(b.pageTable))
	for pid := range b.pageTable {
		ids = append(ids, pid)
	}
	b.mu.Unlock()

	fmt.Printf("[BufferPool] FlushAllPages pool_size=%d resident=%d\n", b.numFrames, len(ids))
	for _, pid := range ids {
		b.FlushPage(pid)
	}
}

// PinCount returns pageID's current pin count. ok is false if the page
// is not resident.
func (b *BufferPoolManager) PinCount(pageID page.PageID) (count int64, ok bool) {
	b.mu.Lock()
	frameID, resident := b.pageTable[pageID]
	b.mu.Unlock()

	if !resident {
		return 0, false
	}
	return b.frames[frameID].PinCount(), true
}

// acquireFrame implements the three-case bring-in path (spec.md §4.3):
// hit, miss-with-free-frame, and miss-with-eviction. On success it
// returns a frame whose rw-latch is held in the mode requested, and
// whose pin count has already been incremented and evictability
// disabled — ready to be wrapped directly in a guard. ok is false iff no
// frame could be obtained.
func (b *BufferPoolManager) acquireFrame(pageID page.PageID, mode accessMode) (*FrameHeader, bool) {
	b.mu.Lock()

	if frameID, hit := b.pageTable[pageID]; hit {
		b.replacer.RecordAccess(frameID)
		frame := b.frames[frameID]
		// Pin and disable eviction while the pool latch is still held, so
		// no concurrent miss can steal this frame via replacer.Evict()
		// between the unlock below and the frame latch acquisition.
		frame.pinCount.Add(1)
		b.replacer.SetEvictable(frameID, false)
		b.mu.Unlock()

		lockFrame(frame, mode)

		fmt.Printf("[BufferPool] HIT pageID=%d frame=%d pin=%d\n", pageID, frameID, frame.PinCount())
		return frame, true
	}

	frameID, victimPageID, victimWasDirty, gotFrame := b.reserveFrameLocked(pageID)
	if !gotFrame {
		b.mu.Unlock()
		return nil, false
	}

	frame := b.frames[frameID]
	// Reserve the frame's rw-latch exclusively before releasing the pool
	// latch and starting I/O: this is what makes a concurrent hit on the
	// same page id block until the bring-in completes, rather than race
	// with it (spec.md §5, §9).
	frame.latch.Lock()
	b.mu.Unlock()

	if victimWasDirty {
		b.flushFrameUnlocked(victimPageID, frame)
	}
	frame.Reset()
	b.readFrameUnlocked(pageID, frame)
	frame.pageID = pageID

	fmt.Printf("[BufferPool] MISS pageID=%d frame=%d evicted=%v\n", pageID, frameID, victimPageID != page.InvalidPageID)

	if mode == modeRead {
		frame.latch.Unlock()
		frame.latch.RLock()
	}

	return frame, true
}

// reserveFrameLocked finds a frame for pageID (free list first, then
// replacer eviction), installs the page map entry, and pins it. Caller
// holds the pool latch and keeps holding it on return. The pin count is
// bumped and evictability disabled here, before the pool latch is ever
// released, so the frame can't be stolen by a concurrent Evict() or
// reclaimed by DeletePage while its bring-in I/O is still in flight — the
// same principle the hit path applies. victimPageID is
// page.InvalidPageID when the frame came from the free list.
func (b *BufferPoolManager) reserveFrameLocked(pageID page.PageID) (frameID FrameID, victimPageID page.PageID, victimWasDirty bool, ok bool) {
	victimPageID = page.InvalidPageID

	if len(b.freeFrames) > 0 {
		frameID = b.freeFrames[0]
		b.freeFrames = b.freeFrames[1:]
	} else {
		evicted, evictOK := b.replacer.Evict()
		if !evictOK {
			return 0, page.InvalidPageID, false, false
		}
		frameID = evicted
		victim := b.frames[frameID]
		victimPageID = victim.PageID()
		victimWasDirty = victim.IsDirty()
		delete(b.pageTable, victimPageID)
	}

	b.replacer.RecordAccess(frameID)
	b.pageTable[pageID] = frameID

	frame := b.frames[frameID]
	frame.pinCount.Add(1)
	b.replacer.SetEvictable(frameID, false)

	return frameID, victimPageID, victimWasDirty, true
}

// flushFrameLocked schedules and awaits a write of frame's current
// contents to pageID, called while the caller already holds the pool
// latch (DeletePage, FlushPage). It briefly takes the frame's shared
// latch to snapshot the buffer, so it cannot race a concurrent
// WriteGuard's mutation of the same bytes.
func (b *BufferPoolManager) flushFrameLocked(pageID page.PageID, frame *FrameHeader) {
	buf := snapshotFrame(frame)
	if !b.scheduleAndAwait(true, pageID, buf) {
		log.Fatalf("buffer pool: flush of page %d failed", pageID)
	}
	frame.isDirty = false
}

// flushFrameUnlocked is flushFrameLocked's counterpart used from
// acquireFrame's bring-in path, where the caller already holds frame's
// rw-latch exclusively (so no snapshot copy is needed) and does not hold
// the pool latch.
func (b *BufferPoolManager) flushFrameUnlocked(pageID page.PageID, frame *FrameHeader) {
	if !b.scheduleAndAwait(true, pageID, frame.data) {
		log.Fatalf("buffer pool: eviction flush of page %d failed", pageID)
	}
}

// readFrameUnlocked schedules and awaits a read of pageID into frame's
// buffer. Caller holds frame's rw-latch exclusively and does not hold
// the pool latch.
func (b *BufferPoolManager) readFrameUnlocked(pageID page.PageID, frame *FrameHeader) {
	if !b.scheduleAndAwait(false, pageID, frame.data) {
		log.Fatalf("buffer pool: read of page %d failed", pageID)
	}
}

func (b *BufferPoolManager) scheduleAndAwait(isWrite bool, pageID page.PageID, data []byte) bool {
	done := make(chan bool, 1)
	b.scheduler.Schedule(&disk.Request{IsWrite: isWrite, PageID: pageID, Data: data, Done: done})
	return <-done
}

func snapshotFrame(frame *FrameHeader) []byte {
	frame.latch.RLock()
	buf := make([]byte, page.PageSize)
	copy(buf, frame.data)
	frame.latch.RUnlock()
	return buf
}

func lockFrame(frame *FrameHeader, mode accessMode) {
	if mode == modeWrite {
		frame.latch.Lock()
	} else {
		frame.latch.RLock()
	}
}
