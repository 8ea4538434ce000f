// Package catalog holds the session's working set of files. A Catalog is
// built once before serving begins and is read-only afterwards, so the
// serve loop can consult it without locking.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrIndexOutOfRange = errors.New("file index out of range")
	ErrRangeInvalid    = errors.New("requested range exceeds file size")
)

// Entry describes one file available to the peer. Size is recorded at
// catalog-build time and never re-checked during the session.
type Entry struct {
	Name string
	Path string
	Size uint64
}

// Catalog is the immutable, ordered set of files for one session. The
// position of an entry is its index on the wire.
type Catalog struct {
	entries []Entry
	total   uint64
}

// New builds a catalog from already-validated entries. The caller is
// responsible for existence and readability checks; see Scan.
func New(entries []Entry) *Catalog {
	c := &Catalog{entries: entries}
	for _, e := range entries {
		c.total += e.Size
	}
	return c
}

// Count returns the number of entries.
func (c *Catalog) Count() int {
	return len(c.entries)
}

// TotalSize returns the sum of all entry sizes, fixed at build time.
func (c *Catalog) TotalSize() uint64 {
	return c.total
}

// NameOf returns the UTF-8 name of the entry at index.
func (c *Catalog) NameOf(index uint32) (string, error) {
	if int(index) >= len(c.entries) {
		return "", fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.entries))
	}
	return c.entries[index].Name, nil
}

// SizeOf returns the declared size of the entry at index.
func (c *Catalog) SizeOf(index uint32) (uint64, error) {
	if int(index) >= len(c.entries) {
		return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.entries))
	}
	return c.entries[index].Size, nil
}

// Names returns all entry names in index order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// OpenRangeReader opens a bounded reader over [offset, offset+length) of the
// entry at index. The range is checked against the recorded size, not the
// file's current size; a file that disappeared since the catalog was built
// surfaces as an open error here.
func (c *Catalog) OpenRangeReader(index uint32, offset uint64, length uint32) (io.ReadCloser, error) {
	if int(index) >= len(c.entries) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(c.entries))
	}
	entry := c.entries[index]
	// Checked as two comparisons so offset+length cannot wrap around.
	if offset > entry.Size || uint64(length) > entry.Size-offset {
		return nil, fmt.Errorf("%w: offset %d + length %d > size %d",
			ErrRangeInvalid, offset, length, entry.Size)
	}

	file, err := os.Open(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return &rangeReader{
		file:    file,
		section: io.NewSectionReader(file, int64(offset), int64(length)),
	}, nil
}

// rangeReader bounds reads to one requested byte range and owns the
// underlying file handle.
type rangeReader struct {
	file    *os.File
	section *io.SectionReader
}

func (r *rangeReader) Read(p []byte) (int, error) {
	return r.section.Read(p)
}

func (r *rangeReader) Close() error {
	return r.file.Close()
}
