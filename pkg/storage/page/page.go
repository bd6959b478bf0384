// Package page holds the id and sizing vocabulary shared by the disk
// manager, the disk scheduler, and the buffer pool manager. It owns no
// behaviour of its own — frame storage lives in pkg/buffer.
package page

// PageSize is the fixed size, in bytes, of every page and every frame's
// buffer.
const PageSize = 4096

// PageID is the unique identifier of a page. Page ids are allocated
// monotonically by the buffer pool manager and are never reused.
type PageID int32

// InvalidPageID is the sentinel meaning "no page".
const InvalidPageID PageID = -1
