// Package signingblock locates the regions of an APK file (content, APK Signing Block,
// central directory and EOCD) and reads and writes the ID-value pairs stored in the
// APK Signing Block.
package signingblock

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// https://source.android.com/security/apksigning/v2.html
// frameworks/base/core/java/android/util/apk/ApkSigningBlockUtils.java

// FORMAT:
//
//	uint64:  size (excluding this field)
//	repeated ID-value pairs:
//	    uint64:           size (excluding this field)
//	    uint32:           ID
//	    (size - 4) bytes: value
//	uint64:  size (same as the one above)
//	uint128: magic
const (
	apkSigBlockMinSize    = 32
	apkSigBlockFooterSize = 24
	apkSigBlockMagicHi    = 0x3234206b636f6c42
	apkSigBlockMagicLo    = 0x20676953204b5041

	BlockIdVerityPadding = 0x42726577
	BlockIdSchemeV2      = 0x7109871a
	BlockIdSchemeV3      = 0xf05368c0
	BlockIdSchemeV31     = 0x1b93ad61
	BlockIdSourceStamp   = 0x6dff800d
)

// FindSigningBlock reads the APK Signing Block, which immediately precedes the central directory.
func FindSigningBlock(r io.ReaderAt, centralDirOffset int64) (*Region, error) {
	if centralDirOffset < apkSigBlockMinSize {
		return nil, fmt.Errorf("%w: APK too small for APK Signing Block, ZIP Central Directory offset: %d",
			ErrNoSigningBlock, centralDirOffset)
	}

	footer := make([]byte, apkSigBlockFooterSize)
	if err := readFullAt(r, footer, centralDirOffset-int64(len(footer))); err != nil {
		return nil, fmt.Errorf("failed to read APK Signing Block footer: %w", err)
	}

	if binary.LittleEndian.Uint64(footer[8:]) != apkSigBlockMagicLo ||
		binary.LittleEndian.Uint64(footer[16:]) != apkSigBlockMagicHi {
		return nil, ErrNoSigningBlock
	}

	blockSizeFooter := binary.LittleEndian.Uint64(footer)
	if blockSizeFooter < uint64(len(footer)) || blockSizeFooter > math.MaxInt32-8 {
		return nil, fmt.Errorf("%w: APK Signing Block size out of range: %d", ErrSizeMismatch, blockSizeFooter)
	}

	totalSize := int64(blockSizeFooter + 8)
	offset := centralDirOffset - totalSize
	if offset < 0 {
		return nil, fmt.Errorf("%w: APK Signing Block offset out of range: %d", ErrSizeMismatch, offset)
	}

	block, err := readRegion(r, offset, totalSize)
	if err != nil {
		return nil, err
	}

	if blockSizeHeader := binary.LittleEndian.Uint64(block.data); blockSizeHeader != blockSizeFooter {
		return nil, fmt.Errorf("%w: APK Signing Block sizes in header and footer do not match: %d vs %d",
			ErrSizeMismatch, blockSizeHeader, blockSizeFooter)
	}
	return block, nil
}

// locate runs EOCD lookup, the ZIP64 check, central directory validation and the
// signing block lookup, in that order.
func locate(r io.ReaderAt, fileSize int64) (eocd *Eocd, block *Region, err error) {
	if eocd, err = FindEocd(r, fileSize); err != nil {
		return nil, nil, &signingBlockNotFoundError{err}
	}

	zip64, err := IsZip64(r, eocd.Offset())
	if err != nil {
		return nil, nil, err
	}
	if zip64 {
		return nil, nil, &signingBlockNotFoundError{fmt.Errorf("%w: ZIP64 APK not supported", ErrUnsupportedFormat)}
	}

	centralDirOffset, _, err := eocd.centralDir()
	if err != nil {
		return nil, nil, &signingBlockNotFoundError{err}
	}

	if block, err = FindSigningBlock(r, centralDirOffset); err != nil {
		return nil, nil, &signingBlockNotFoundError{err}
	}
	return eocd, block, nil
}

// ReadPairs returns the ID-value pairs of the APK Signing Block in the file at path.
// Unlike ReadSections, it does not read the central directory.
func ReadPairs(path string) (*Pairs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	_, block, err := locate(f, fi.Size())
	if err != nil {
		return nil, err
	}
	return DecodePairs(block.data)
}
