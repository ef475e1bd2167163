package signingblock

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD)
//
// Offset  Bytes  Description
// 0       4      signature = 0x06054b50
// 4       2      number of this disk
// 6       2      disk where central directory starts
// 8       2      number of central directory records on this disk
// 10      2      total number of central directory records
// 12      4      size of central directory
// 16      4      offset of start of central directory
// 20      2      comment length (n)
// 22      n      comment
const (
	EocdMinSize                = 22
	eocdRecMagic               = 0x06054b50
	eocdCentralDirSizeOffset   = 12
	eocdCentralDirOffsetOffset = 16
	eocdCommentSizeOffset      = 20

	zip64LocatorSize  = 20
	zip64LocatorMagic = 0x07064b50
)

// Eocd is the End of Central Directory record of an archive, comment included.
type Eocd struct {
	region *Region
}

func (e *Eocd) Offset() int64 { return e.region.Offset() }
func (e *Eocd) Size() int64   { return e.region.Size() }
func (e *Eocd) End() int64    { return e.region.End() }

// Bytes returns a copy of the record.
func (e *Eocd) Bytes() []byte {
	return append([]byte(nil), e.region.data...)
}

func (e *Eocd) CentralDirSize() uint32 {
	return binary.LittleEndian.Uint32(e.region.data[eocdCentralDirSizeOffset:])
}

func (e *Eocd) CentralDirOffset() uint32 {
	return binary.LittleEndian.Uint32(e.region.data[eocdCentralDirOffsetOffset:])
}

func (e *Eocd) CommentLength() uint16 {
	return binary.LittleEndian.Uint16(e.region.data[eocdCommentSizeOffset:])
}

// Comment returns a copy of the archive comment.
func (e *Eocd) Comment() []byte {
	return append([]byte(nil), e.region.data[EocdMinSize:]...)
}

// WithCentralDirOffset returns a fresh copy of the record with the central directory
// offset field replaced. The receiver is left untouched.
func (e *Eocd) WithCentralDirOffset(offset uint32) []byte {
	buf := e.Bytes()
	binary.LittleEndian.PutUint32(buf[eocdCentralDirOffsetOffset:], offset)
	return buf
}

// centralDir returns the central directory position after checking that it ends
// exactly where the record starts.
func (e *Eocd) centralDir() (offset, size int64, err error) {
	offset = int64(e.CentralDirOffset())
	size = int64(e.CentralDirSize())

	if offset >= e.Offset() {
		return 0, 0, fmt.Errorf("%w: ZIP Central Directory offset out of range: %d, ZIP End of Central Directory offset: %d",
			ErrMalformedEocd, offset, e.Offset())
	}
	if offset+size != e.Offset() {
		return 0, 0, fmt.Errorf("%w: ZIP Central Directory is not immediately followed by End of Central Directory",
			ErrMalformedEocd)
	}
	return offset, size, nil
}

// FindEocd locates the End of Central Directory record by scanning backwards from the end of r.
func FindEocd(r io.ReaderAt, fileSize int64) (*Eocd, error) {
	if fileSize < EocdMinSize {
		return nil, fmt.Errorf("%w: APK file is too short (%d bytes)", ErrNotAnArchive, fileSize)
	}

	// Nearly all APKs have no comment, so the record sits at a known offset.
	eocd, err := findEocdMaxCommentSize(r, fileSize, 0)
	if err != ErrNotAnArchive {
		return eocd, err
	}
	return findEocdMaxCommentSize(r, fileSize, math.MaxUint16)
}

func findEocdMaxCommentSize(r io.ReaderAt, fileSize int64, maxCommentSize int) (*Eocd, error) {
	if int64(maxCommentSize) > fileSize-EocdMinSize {
		maxCommentSize = int(fileSize - EocdMinSize)
	}

	buf := make([]byte, EocdMinSize+maxCommentSize)
	bufOffsetInFile := fileSize - int64(len(buf))
	if err := readFullAt(r, buf, bufOffsetInFile); err != nil {
		return nil, fmt.Errorf("failed to read EOCD search window: %w", err)
	}

	emptyCommentStart := len(buf) - EocdMinSize
	for commentSize := 0; commentSize <= maxCommentSize; commentSize++ {
		pos := emptyCommentStart - commentSize
		if binary.LittleEndian.Uint32(buf[pos:]) != eocdRecMagic {
			continue
		}

		// A signature inside a comment is only accepted if its comment length
		// reaches exactly to the end of the file.
		if int(binary.LittleEndian.Uint16(buf[pos+eocdCommentSizeOffset:])) == commentSize {
			return &Eocd{region: newRegion(buf[pos:], bufOffsetInFile+int64(pos))}, nil
		}
	}
	return nil, ErrNotAnArchive
}

// IsZip64 reports whether a ZIP64 End of Central Directory Locator precedes the record at eocdOffset.
func IsZip64(r io.ReaderAt, eocdOffset int64) (bool, error) {
	locatorPos := eocdOffset - zip64LocatorSize
	if locatorPos < 0 {
		return false, nil
	}

	var magic [4]byte
	if err := readFullAt(r, magic[:], locatorPos); err != nil {
		return false, fmt.Errorf("failed to read ZIP64 locator: %w", err)
	}
	return binary.LittleEndian.Uint32(magic[:]) == zip64LocatorMagic, nil
}
