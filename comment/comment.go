// Package comment stores a channel string in the ZIP archive comment, for APKs
// signed with the JAR scheme only.
//
// The comment ends with a fixed trailer:
//
//	[channel bytes][uint16 channel length][8 byte magic]
//
// A v2 or v3 signature covers the EOCD record, comment included, so this
// format must not be used on files carrying an APK Signing Block.
package comment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/avast/apkchannel/signingblock"
)

// Magic ends every comment written by Write.
var Magic = []byte{0x6c, 0x74, 0x6c, 0x6f, 0x76, 0x65, 0x7a, 0x68}

const (
	lengthFieldSize = 2
	trailerSize     = lengthFieldSize + 8

	// MaxChannelLength is the longest channel that still fits the uint16 comment length.
	MaxChannelLength = math.MaxUint16 - trailerSize
)

var (
	ErrAlreadyTagged  = errors.New("archive comment already carries a channel")
	ErrCommentPresent = errors.New("archive already has a comment")
	ErrNoChannelInfo  = errors.New("no channel in archive comment")
	ErrEmptyChannel   = errors.New("empty channel")
	ErrChannelTooLong = errors.New("channel too long for archive comment")
)

// Write appends channel to the archive at path as its comment. The archive must
// have no comment yet; one write per file is supported.
func Write(path, channel string) error {
	if len(channel) == 0 {
		return ErrEmptyChannel
	} else if len(channel) > MaxChannelLength {
		return fmt.Errorf("%w: %d bytes", ErrChannelTooLong, len(channel))
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	eocd, err := signingblock.FindEocd(f, fi.Size())
	if err != nil {
		return err
	}

	if zip64, err := signingblock.IsZip64(f, eocd.Offset()); err != nil {
		return err
	} else if zip64 {
		return fmt.Errorf("%w: ZIP64 archive", signingblock.ErrUnsupportedFormat)
	}

	if eocd.CommentLength() != 0 {
		if existing, err := read(f, fi.Size()); err == nil {
			return fmt.Errorf("%w: %q", ErrAlreadyTagged, existing)
		}
		return ErrCommentPresent
	}

	trailer := make([]byte, 0, lengthFieldSize+len(channel)+trailerSize)
	trailer = binary.LittleEndian.AppendUint16(trailer, uint16(len(channel)+trailerSize))
	trailer = append(trailer, channel...)
	trailer = binary.LittleEndian.AppendUint16(trailer, uint16(len(channel)))
	trailer = append(trailer, Magic...)

	// The comment length field is the last field of a comment-less record.
	if _, err := f.WriteAt(trailer, fi.Size()-lengthFieldSize); err != nil {
		return fmt.Errorf("failed to write comment: %w", err)
	}
	return nil
}

// Read returns the channel stored in the comment of the archive at path.
func Read(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	return read(f, fi.Size())
}

// HasMagic reports whether the file at path ends with Magic.
func HasMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	return hasMagic(f, fi.Size())
}

func hasMagic(r io.ReaderAt, size int64) (bool, error) {
	if size < int64(len(Magic)) {
		return false, nil
	}

	buf := make([]byte, len(Magic))
	if _, err := r.ReadAt(buf, size-int64(len(buf))); err != nil {
		return false, err
	}
	return bytes.Equal(buf, Magic), nil
}

func read(r io.ReaderAt, size int64) (string, error) {
	if ok, err := hasMagic(r, size); err != nil {
		return "", err
	} else if !ok {
		return "", fmt.Errorf("%w: magic not found", ErrNoChannelInfo)
	}

	lengthPos := size - int64(len(Magic)) - lengthFieldSize
	if lengthPos < 0 {
		return "", ErrNoChannelInfo
	}

	var lengthField [lengthFieldSize]byte
	if _, err := r.ReadAt(lengthField[:], lengthPos); err != nil {
		return "", err
	}

	length := int64(binary.LittleEndian.Uint16(lengthField[:]))
	if length == 0 || length > lengthPos {
		return "", fmt.Errorf("%w: bad channel length %d", ErrNoChannelInfo, length)
	}

	channel := make([]byte, length)
	if _, err := r.ReadAt(channel, lengthPos-length); err != nil {
		return "", err
	}
	return string(channel), nil
}
