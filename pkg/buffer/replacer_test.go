package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUKReplacerNewFramesEvictBeforeKAccessFrames(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	// frame 0 reaches k=2 accesses; frame 1 has only one access ("new").
	r.RecordAccess(0)
	r.RecordAccess(1)
	r.RecordAccess(0)

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	assert.True(t, ok)
	assert.Equal(t, FrameID(1), victim, "frame with fewer than k accesses should be evicted first")
}

func TestLRUKReplacerBackwardKDistanceAmongFullHistories(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	r.RecordAccess(0)
	r.RecordAccess(0)
	r.RecordAccess(1)
	r.RecordAccess(1)
	// frame 0's k-th-most-recent access is older than frame 1's.

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	assert.True(t, ok)
	assert.Equal(t, FrameID(0), victim)
}

func TestLRUKReplacerSkipsNonEvictableFrames(t *testing.T) {
	r := NewLRUKReplacer(2, 2)

	r.RecordAccess(0)
	r.RecordAccess(1)
	r.SetEvictable(0, false)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	assert.True(t, ok)
	assert.Equal(t, FrameID(1), victim)

	_, ok = r.Evict()
	assert.False(t, ok, "no frame should remain evictable")
}

func TestLRUKReplacerSize(t *testing.T) {
	r := NewLRUKReplacer(3, 2)

	r.RecordAccess(0)
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.SetEvictable(0, true)
	r.SetEvictable(1, true)
	r.SetEvictable(2, false)

	assert.Equal(t, 2, r.Size())
}
