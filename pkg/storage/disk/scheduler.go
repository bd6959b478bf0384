package disk

import (
	"container/list"
	"fmt"
	"sync"

	"bufpool/pkg/storage/page"
)

// Request is a single page-sized I/O request. Completion is reported by
// sending exactly one value on Done.
type Request struct {
	IsWrite bool
	PageID  page.PageID
	// Data is the frame's buffer for a write, or the destination buffer
	// for a read. Exactly page.PageSize bytes.
	Data []byte
	Done chan bool
}

// Scheduler decouples the buffer pool from the block device: requests are
// enqueued on an unbounded FIFO queue and served by a single background
// worker, in enqueue order. This is the only ordering guarantee — but it
// is enough for the buffer pool manager to ensure a write always
// completes before a subsequent read of the same page begins, simply by
// awaiting the write's completion before scheduling the read.
type Scheduler struct {
	diskManager DiskManager

	mu       sync.Mutex
	cond     *sync.Cond
	queue    *list.List // of *Request, nil element is the shutdown sentinel
	closed   bool
	workerWG sync.WaitGroup
}

// NewScheduler starts the background worker and returns a ready
// Scheduler.
func NewScheduler(diskManager DiskManager) *Scheduler {
	s := &Scheduler{
		diskManager: diskManager,
		queue:       list.New(),
	}
	s.cond = sync.NewCond(&s.mu)

	s.workerWG.Add(1)
	go s.run()

	return s
}

// Schedule enqueues req. Non-blocking for the caller.
func (s *Scheduler) Schedule(req *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.PushBack(req)
	s.cond.Signal()
}

// IncreaseDiskSpace is synchronous and bypasses the request queue, per
// the disk scheduler contract.
func (s *Scheduler) IncreaseDiskSpace(numPages int) error {
	return s.diskManager.IncreaseDiskSpace(numPages)
}

// Deallocate is synchronous and bypasses the request queue.
func (s *Scheduler) Deallocate(pageID page.PageID) error {
	return s.diskManager.Deallocate(pageID)
}

// Shutdown enqueues the sentinel "no request" and waits for the worker to
// drain up to it and exit. Calls after the first return immediately; safe
// for the Scheduler to be discarded afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue.PushBack((*Request)(nil))
	s.cond.Signal()
	s.mu.Unlock()

	s.workerWG.Wait()
}

func (s *Scheduler) run() {
	defer s.workerWG.Done()

	for {
		req := s.dequeue()
		if req == nil {
			return
		}

		var err error
		if req.IsWrite {
			err = s.diskManager.WritePage(req.PageID, req.Data)
		} else {
			err = s.diskManager.ReadPage(req.PageID, req.Data)
		}

		if err != nil {
			// The disk manager's contract assumes it succeeds for
			// in-range page ids; surface failure through the
			// completion signal so the caller can treat it as fatal.
			fmt.Printf("[DiskScheduler] request failed pageID=%d write=%v: %v\n", req.PageID, req.IsWrite, err)
			req.Done <- false
			continue
		}

		req.Done <- true
	}
}

func (s *Scheduler) dequeue() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.queue.Len() == 0 {
		s.cond.Wait()
	}

	front := s.queue.Front()
	s.queue.Remove(front)
	return front.Value.(*Request)
}
