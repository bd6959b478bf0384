package buffer

import (
	"sync"
)

// Replacer is the buffer pool manager's external collaborator for choosing
// eviction victims. Replacement policy internals are opaque; only this
// contract is normative.
type Replacer interface {
	// RecordAccess notes an access to frameID.
	RecordAccess(frameID FrameID)
	// SetEvictable toggles whether Evict may return frameID.
	SetEvictable(frameID FrameID, evictable bool)
	// Evict returns the best victim among currently-evictable frames,
	// marking it non-evictable. ok is false if no frame is evictable.
	Evict() (frameID FrameID, ok bool)
	// Size returns the count of currently-evictable frames.
	Size() int
}

// LRUKReplacer picks victims by backward k-distance: the frame whose
// k-th most recent access is furthest in the past is evicted first.
// Frames with fewer than k recorded accesses are considered to have
// infinite backward k-distance and are evicted in earliest-access order
// ahead of any frame that has reached k accesses — the classic LRU-K
// "new" vs. "cache" split, tracked here with a per-frame timestamp
// history the same way the teacher's LRUReplacer tracks a single access
// order for plain LRU.
type LRUKReplacer struct {
	mu sync.Mutex

	k     int
	clock int64 // monotonic logical timestamp, incremented per access

	history   map[FrameID][]int64 // access timestamps, most recent last, capped at k
	evictable map[FrameID]bool
}

// NewLRUKReplacer creates a replacer over numFrames frame slots (0..
// numFrames-1) using backward k-distance with the given k.
func NewLRUKReplacer(numFrames int, k int) *LRUKReplacer {
	if k < 1 {
		k = 1
	}
	return &LRUKReplacer{
		k:         k,
		history:   make(map[FrameID][]int64, numFrames),
		evictable: make(map[FrameID]bool, numFrames),
	}
}

// RecordAccess notes an access to frameID, trimming its history to the
// most recent k timestamps.
func (r *LRUKReplacer) RecordAccess(frameID FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++
	hist := append(r.history[frameID], r.clock)
	if len(hist) > r.k {
		hist = hist[len(hist)-r.k:]
	}
	r.history[frameID] = hist

	if _, tracked := r.evictable[frameID]; !tracked {
		r.evictable[frameID] = false
	}
}

// SetEvictable toggles frameID's evictability. A frame that has never
// been recorded via RecordAccess is tracked lazily.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictable[frameID] = evictable
}

// Evict picks the evictable frame with the largest backward k-distance
// (least-recently-used-among-k, "new" frames with fewer than k accesses
// take priority over any frame that has reached k), removes its history,
// and marks it non-evictable.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		found      bool
		victim     FrameID
		bestIsNew  bool
		bestEarly  int64 // for "new" frames: timestamp of their earliest access
		bestKDist  int64 // for "cache" frames: clock - k-th-most-recent access
	)

	for frameID, evictable := range r.evictable {
		if !evictable {
			continue
		}
		hist := r.history[frameID]
		if len(hist) == 0 {
			continue
		}

		isNew := len(hist) < r.k
		var early int64
		var kDist int64
		if isNew {
			early = hist[0]
		} else {
			kDist = r.clock - hist[0] + 1
		}

		switch {
		case !found:
			found = true
			victim, bestIsNew, bestEarly, bestKDist = frameID, isNew, early, kDist
		case isNew && !bestIsNew:
			victim, bestIsNew, bestEarly, bestKDist = frameID, isNew, early, kDist
		case isNew == bestIsNew && isNew && early < bestEarly:
			victim, bestEarly = frameID, early
		case isNew == bestIsNew && !isNew && kDist > bestKDist:
			victim, bestKDist = frameID, kDist
		}
	}

	if !found {
		return 0, false
	}

	delete(r.history, victim)
	r.evictable[victim] = false
	return victim, true
}

// Size returns the number of frames currently marked evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, evictable := range r.evictable {
		if evictable {
			n++
		}
	}
	return n
}
