package buffer

import (
	"os"
	"sync"
	"testing"

	"bufpool/pkg/storage/disk"
	"bufpool/pkg/storage/page"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBPM(t *testing.T, numFrames int) (*BufferPoolManager, func()) {
	t.Helper()
	dbFile := t.TempDir() + "/bpm_test.db"

	dm, err := disk.NewFileDiskManager(dbFile)
	require.NoError(t, err)

	bpm := NewBufferPoolManager(numFrames, dm, 2)
	return bpm, func() {
		bpm.Close()
		os.Remove(dbFile)
	}
}

func TestBufferPoolManagerHitPathAvoidsIO(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 2)
	defer cleanup()

	pid := bpm.NewPage()

	g := bpm.WritePage(pid)
	copy(g.DataMut(), []byte("hello"))
	g.Drop()

	g2, ok := bpm.CheckedReadPage(pid)
	require.True(t, ok)
	assert.Equal(t, "hello", string(g2.Data()[:5]))
	g2.Drop()
}

func TestBufferPoolManagerEvictionFlushesDirtyVictim(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 2)
	defer cleanup()

	p0 := bpm.NewPage()
	p1 := bpm.NewPage()
	p2 := bpm.NewPage()

	w0 := bpm.WritePage(p0)
	copy(w0.DataMut(), []byte("Page 0 Data"))
	w0.Drop()

	w1 := bpm.WritePage(p1)
	copy(w1.DataMut(), []byte("Page 1 Data"))
	w1.Drop()

	// Pool is full of two dirty, pinned-then-unpinned, evictable frames;
	// bringing in p2 must evict one of them (LRU-K picks p0, the older
	// "new" access).
	w2 := bpm.WritePage(p2)
	copy(w2.DataMut(), []byte("Page 2 Data"))
	w2.Drop()

	r0, ok := bpm.CheckedReadPage(p0)
	require.True(t, ok)
	assert.Equal(t, "Page 0 Data", string(r0.Data()[:11]))
	r0.Drop()
}

func TestBufferPoolManagerFullyPinnedPoolRejectsBringIn(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 1)
	defer cleanup()

	p0 := bpm.NewPage()
	p1 := bpm.NewPage()

	g0, ok := bpm.CheckedWritePage(p0)
	require.True(t, ok)

	_, ok = bpm.CheckedReadPage(p1)
	assert.False(t, ok, "the sole frame is pinned, so no victim is available")

	g0.Drop()
}

func TestBufferPoolManagerPinBlocksDeletion(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 2)
	defer cleanup()

	pid := bpm.NewPage()
	g, ok := bpm.CheckedReadPage(pid)
	require.True(t, ok)

	assert.False(t, bpm.DeletePage(pid), "a pinned page must not be deletable")

	g.Drop()
	assert.True(t, bpm.DeletePage(pid))
}

func TestBufferPoolManagerFlushPageThenAgainReturnsFalse(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 2)
	defer cleanup()

	pid := bpm.NewPage()
	g := bpm.WritePage(pid)
	copy(g.DataMut(), []byte("dirty"))
	g.Drop()

	assert.True(t, bpm.FlushPage(pid))
	assert.False(t, bpm.FlushPage(pid), "a clean page has nothing to flush")
}

func TestBufferPoolManagerFlushAllPagesClearsDirtyFlags(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 4)
	defer cleanup()

	ids := make([]page.PageID, 3)
	for i := range ids {
		ids[i] = bpm.NewPage()
		g := bpm.WritePage(ids[i])
		copy(g.DataMut(), []byte("data"))
		g.Drop()
	}

	bpm.FlushAllPages()

	for _, pid := range ids {
		assert.False(t, bpm.FlushPage(pid))
	}
}

func TestBufferPoolManagerConcurrentReaders(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 4)
	defer cleanup()

	pid := bpm.NewPage()
	w := bpm.WritePage(pid)
	copy(w.DataMut(), []byte("shared"))
	w.Drop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, ok := bpm.CheckedReadPage(pid)
			require.True(t, ok)
			assert.Equal(t, "shared", string(g.Data()[:6]))
			g.Drop()
		}()
	}
	wg.Wait()

	count, ok := bpm.PinCount(pid)
	require.True(t, ok)
	assert.Equal(t, int64(0), count)
}

func TestBufferPoolManagerNewPageIDsAreDistinctAndSequential(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 2)
	defer cleanup()

	p0 := bpm.NewPage()
	p1 := bpm.NewPage()
	assert.Equal(t, page.PageID(0), p0)
	assert.Equal(t, page.PageID(1), p1)
}

func TestBufferPoolManagerDeleteOfNonResidentPageSucceeds(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 2)
	defer cleanup()

	assert.True(t, bpm.DeletePage(page.PageID(42)))
}

func TestBufferPoolManagerSize(t *testing.T) {
	bpm, cleanup := newTestBPM(t, 3)
	defer cleanup()

	assert.Equal(t, 3, bpm.Size())
}
