package signingblock

import (
	"bytes"
	"fmt"
	"io"
)

// Region is an immutable view of one contiguous part of an APK file.
// The bytes may be absent (see Loaded), in which case only the position is known.
type Region struct {
	data   []byte
	offset int64
	size   int64
	cursor *bytes.Reader
}

func newRegion(data []byte, offset int64) *Region {
	return &Region{
		data:   data,
		offset: offset,
		size:   int64(len(data)),
		cursor: bytes.NewReader(data),
	}
}

func newUnloadedRegion(offset, size int64) *Region {
	return &Region{
		offset: offset,
		size:   size,
	}
}

// readRegion reads size bytes at offset.
func readRegion(r io.ReaderAt, offset, size int64) (*Region, error) {
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("region out of range: offset %d, size %d", offset, size)
	}

	buf := make([]byte, size)
	if err := readFullAt(r, buf, offset); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at %d: %w", size, offset, err)
	}
	return newRegion(buf, offset), nil
}

func (r *Region) Offset() int64 { return r.offset }
func (r *Region) Size() int64   { return r.size }
func (r *Region) End() int64    { return r.offset + r.size }

// Loaded reports whether the region bytes are held in memory.
func (r *Region) Loaded() bool {
	return r.cursor != nil
}

// Bytes returns the region contents, nil when not loaded. The slice must not be modified.
func (r *Region) Bytes() []byte {
	return r.data
}

// Read consumes the region from its cursor.
func (r *Region) Read(p []byte) (int, error) {
	if r.cursor == nil {
		return 0, fmt.Errorf("region at %d is not loaded", r.offset)
	}
	return r.cursor.Read(p)
}

// Rewind moves the read cursor back to the region start.
func (r *Region) Rewind() {
	if r.cursor != nil {
		r.cursor.Reset(r.data)
	}
}

func (r *Region) String() string {
	return fmt.Sprintf("[%d, %d) loaded=%v", r.offset, r.End(), r.Loaded())
}

func readFullAt(r io.ReaderAt, buf []byte, offset int64) error {
	n, err := r.ReadAt(buf, offset)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// sliceWindow returns buf[start:end] or an error when the window does not fit.
func sliceWindow(buf []byte, start, end int) ([]byte, error) {
	if start < 0 || end < start || end > len(buf) {
		return nil, fmt.Errorf("window [%d, %d) out of range, buffer length %d", start, end, len(buf))
	}
	return buf[start:end], nil
}
