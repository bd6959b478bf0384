package disk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"bufpool/pkg/storage/page"
)

// DiskManager is the external collaborator the disk scheduler drives: a
// synchronous, blocking block-device abstraction. Reads and writes always
// operate on exactly page.PageSize bytes.
type DiskManager interface {
	// ReadPage fills buf (len == page.PageSize) with the on-disk contents
	// of pageID.
	ReadPage(pageID page.PageID, buf []byte) error
	// WritePage writes buf (len == page.PageSize) to pageID's on-disk
	// location.
	WritePage(pageID page.PageID, buf []byte) error
	// IncreaseDiskSpace ensures the backing store can address at least
	// numPages pages (ids 0..numPages-1). Synchronous.
	IncreaseDiskSpace(numPages int) error
	// Deallocate marks pageID's disk region as no longer in use. May be
	// a no-op recycling hook.
	Deallocate(pageID page.PageID) error
	Close() error
}

// FileDiskManager is a DiskManager backed by a single flat file, page N
// occupying bytes [N*PageSize, (N+1)*PageSize).
type FileDiskManager struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewFileDiskManager opens (creating if necessary) the database file at
// path.
func NewFileDiskManager(path string) (*FileDiskManager, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("disk manager: create data dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o664)
	if err != nil {
		return nil, fmt.Errorf("disk manager: open %s: %w", path, err)
	}

	return &FileDiskManager{file: file, path: path}, nil
}

// Close closes the underlying file handle.
func (d *FileDiskManager) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

// ReadPage reads pageID's PageSize-byte region into buf. A page that has
// had disk space reserved but was never written reads back as zeroes.
func (d *FileDiskManager) ReadPage(pageID page.PageID, buf []byte) error {
	if len(buf) != page.PageSize {
		return fmt.Errorf("disk manager: read buffer must be %d bytes, got %d", page.PageSize, len(buf))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * page.PageSize
	if _, err := d.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("disk manager: seek page %d: %w", pageID, err)
	}

	if _, err := io.ReadFull(d.file, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			// Space was reserved but never written; unspecified contents,
			// zero is as good as anything.
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		return fmt.Errorf("disk manager: read page %d: %w", pageID, err)
	}

	return nil
}

// WritePage writes buf to pageID's on-disk region.
func (d *FileDiskManager) WritePage(pageID page.PageID, buf []byte) error {
	if len(buf) != page.PageSize {
		return fmt.Errorf("disk manager: write buffer must be %d bytes, got %d", page.PageSize, len(buf))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * page.PageSize
	if _, err := d.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("disk manager: seek page %d: %w", pageID, err)
	}

	if _, err := d.file.Write(buf); err != nil {
		return fmt.Errorf("disk manager: write page %d: %w", pageID, err)
	}

	return nil
}

// IncreaseDiskSpace extends the backing file so pages 0..numPages-1 are
// addressable. Shrinking is never performed.
func (d *FileDiskManager) IncreaseDiskSpace(numPages int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	want := int64(numPages) * page.PageSize
	info, err := d.file.Stat()
	if err != nil {
		return fmt.Errorf("disk manager: stat: %w", err)
	}
	if info.Size() >= want {
		return nil
	}
	if err := d.file.Truncate(want); err != nil {
		return fmt.Errorf("disk manager: grow to %d bytes: %w", want, err)
	}
	return nil
}

// Deallocate is a no-op: free-space recycling is out of scope, disk
// space is only ever reserved upward by IncreaseDiskSpace.
func (d *FileDiskManager) Deallocate(page.PageID) error {
	return nil
}
