// Package pager implements the fixed-page-size storage layer that the
// B+Tree index is built on: page I/O, bump allocation of new pages, and a
// LIFO free list threaded through freed pages.
//
// Page 0 is reserved for pager metadata — the B+Tree root page number and
// the head of the free list. All other pages are opaque to the Pager; it
// is the caller's job (Node, Tree) to interpret their contents.
package pager

import (
	"encoding/binary"
	"fmt"
	"os"
)

// PageSize is the fixed size, in bytes, of every page in a pager file.
const PageSize = 4096

// PageID identifies a page within a pager file. Page 0 always holds pager
// metadata.
type PageID uint32

// metaRootOff and metaFreeOff are the byte offsets of the root pointer and
// free-list head within page 0.
const (
	metaRootOff = 0
	metaFreeOff = 4
)

// Pager owns a single file and presents it as a sequence of fixed-size
// pages numbered from 0.
type Pager struct {
	file       *os.File
	totalPages uint32
	root       PageID
	freeHead   PageID
}

// Open opens (creating if absent) the pager file at path. A freshly created
// file gets a zero-filled page 0 with root=0, free=0. An existing file's
// length must be an exact multiple of PageSize.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat %s: %w", path, err)
	}

	p := &Pager{file: f}

	if info.Size() == 0 {
		buf := make([]byte, PageSize)
		if _, err := f.WriteAt(buf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: initialize %s: %w", path, err)
		}
		p.totalPages = 1
		p.root = 0
		p.freeHead = 0
		return p, nil
	}

	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s size %d is not a multiple of page size %d", ErrCorrupt, path, info.Size(), PageSize)
	}

	p.totalPages = uint32(info.Size() / PageSize)

	meta := make([]byte, PageSize)
	if _, err := f.ReadAt(meta, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: read metadata page of %s: %w", path, err)
	}
	p.root = PageID(binary.LittleEndian.Uint32(meta[metaRootOff:]))
	p.freeHead = PageID(binary.LittleEndian.Uint32(meta[metaFreeOff:]))

	return p, nil
}

// Close releases the underlying file handle.
func (p *Pager) Close() error {
	return p.file.Close()
}

// TotalPages returns the number of pages currently in the file, including
// page 0.
func (p *Pager) TotalPages() uint32 {
	return p.totalPages
}

// Root returns the current B+Tree root page number.
func (p *Pager) Root() PageID {
	return p.root
}

// FreeHead returns the head of the free list (0 means empty).
func (p *Pager) FreeHead() PageID {
	return p.freeHead
}

// SetRoot updates and persists the B+Tree root page number.
func (p *Pager) SetRoot(n PageID) error {
	p.root = n
	return p.writeMeta()
}

func (p *Pager) writeMeta() error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[metaRootOff:], uint32(p.root))
	binary.LittleEndian.PutUint32(buf[metaFreeOff:], uint32(p.freeHead))
	if _, err := p.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("pager: write metadata page: %w", err)
	}
	return nil
}

// ReadPage returns a copy of the bytes of page n.
func (p *Pager) ReadPage(n PageID) ([]byte, error) {
	if uint32(n) >= p.totalPages {
		return nil, fmt.Errorf("%w: page %d out of range (total %d)", ErrInvalidPage, n, p.totalPages)
	}
	buf := make([]byte, PageSize)
	if _, err := p.file.ReadAt(buf, int64(n)*PageSize); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", n, err)
	}
	return buf, nil
}

// WritePage overwrites page n with bytes, which must be exactly PageSize
// long.
func (p *Pager) WritePage(n PageID, bytes []byte) error {
	if uint32(n) >= p.totalPages {
		return fmt.Errorf("%w: page %d out of range (total %d)", ErrInvalidPage, n, p.totalPages)
	}
	if len(bytes) != PageSize {
		return fmt.Errorf("%w: page buffer has length %d, want %d", ErrInvalidPage, len(bytes), PageSize)
	}
	if _, err := p.file.WriteAt(bytes, int64(n)*PageSize); err != nil {
		return fmt.Errorf("pager: write page %d: %w", n, err)
	}
	return nil
}

// AllocatePage returns a page ready for use: either unlinked from the head
// of the free list (zero-filled before being handed back), or freshly
// appended to the end of the file. It does not flush beyond the write
// itself.
func (p *Pager) AllocatePage() (PageID, error) {
	if p.freeHead != 0 {
		n := p.freeHead
		link := make([]byte, 4)
		if _, err := p.file.ReadAt(link, int64(n)*PageSize); err != nil {
			return 0, fmt.Errorf("pager: read free list link at page %d: %w", n, err)
		}
		next := PageID(binary.LittleEndian.Uint32(link))

		zero := make([]byte, PageSize)
		if _, err := p.file.WriteAt(zero, int64(n)*PageSize); err != nil {
			return 0, fmt.Errorf("pager: zero reused page %d: %w", n, err)
		}

		p.freeHead = next
		if err := p.writeMeta(); err != nil {
			return 0, err
		}
		return n, nil
	}

	n := PageID(p.totalPages)
	zero := make([]byte, PageSize)
	if _, err := p.file.WriteAt(zero, int64(n)*PageSize); err != nil {
		return 0, fmt.Errorf("pager: append page %d: %w", n, err)
	}
	p.totalPages++
	return n, nil
}

// FreePage prepends page n to the free list. Page 0 and out-of-range pages
// are rejected.
func (p *Pager) FreePage(n PageID) error {
	if n == 0 {
		return fmt.Errorf("%w: cannot free the metadata page", ErrInvalidPage)
	}
	if uint32(n) >= p.totalPages {
		return fmt.Errorf("%w: page %d out of range (total %d)", ErrInvalidPage, n, p.totalPages)
	}

	link := make([]byte, 4)
	binary.LittleEndian.PutUint32(link, uint32(p.freeHead))
	if _, err := p.file.WriteAt(link, int64(n)*PageSize); err != nil {
		return fmt.Errorf("pager: write free list link at page %d: %w", n, err)
	}

	p.freeHead = n
	return p.writeMeta()
}
