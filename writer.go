package apkchannel

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/avast/apkchannel/signingblock"
)

// AddIdValue stores value under id in the APK Signing Block of dest.
//
// s describes the base APK and dest must be a byte-identical copy of it, or the base file
// itself. s keeps describing the base APK afterwards and can serve further copies.
func AddIdValue(s *signingblock.Sections, dest string, id uint32, value []byte, opts Options) error {
	if id == signingblock.BlockIdSchemeV2 {
		return ErrReservedID
	}

	values := signingblock.NewPairs()
	values.Set(id, value)
	return AddIdValues(s, dest, values, opts)
}

// AddIdValues merges values into the APK Signing Block of dest, see AddIdValue.
// Values under ids already present replace the old ones in place. The v2 signature
// id is skipped, and when nothing else is left dest is not written at all.
// An empty values is ErrNoValues.
func AddIdValues(s *signingblock.Sections, dest string, values *signingblock.Pairs, opts Options) error {
	opts.applyDefaults()

	if values.Len() == 0 {
		return ErrNoValues
	}

	pairs := s.Pairs()
	if !pairs.Has(signingblock.BlockIdSchemeV2) {
		return ErrMissingSignature
	}

	var added int
	for id, v := range values.All() {
		if id == signingblock.BlockIdSchemeV2 {
			opts.Logger.Debug("skipping reserved id", slog.String("path", dest))
			continue
		}
		pairs.Set(id, bytes.Clone(v))
		added++
	}

	if added == 0 {
		opts.Logger.Info("nothing to add", slog.String("path", dest))
		return nil
	}
	return rewrite(s, dest, pairs, opts)
}

// RemoveIdValues deletes ids from the APK Signing Block of dest, see AddIdValue, and
// returns how many were present. The v2 signature id is never removed. When none of
// ids is present, dest is not written at all.
func RemoveIdValues(s *signingblock.Sections, dest string, ids []uint32, opts Options) (int, error) {
	opts.applyDefaults()

	pairs := s.Pairs()
	if !pairs.Has(signingblock.BlockIdSchemeV2) {
		return 0, ErrMissingSignature
	}

	var removed int
	for _, id := range ids {
		if id != signingblock.BlockIdSchemeV2 && pairs.Delete(id) {
			removed++
		}
	}

	if removed == 0 {
		opts.Logger.Info("nothing to remove", slog.String("path", dest))
		return 0, nil
	}
	return removed, rewrite(s, dest, pairs, opts)
}

// AddIdValueInPlace is AddIdValue on the file at path.
func AddIdValueInPlace(path string, id uint32, value []byte, opts Options) error {
	s, err := ReadSections(path, opts)
	if err != nil {
		return err
	}
	return AddIdValue(s, path, id, value, opts)
}

// AddIdValuesInPlace is AddIdValues on the file at path.
func AddIdValuesInPlace(path string, values *signingblock.Pairs, opts Options) error {
	s, err := ReadSections(path, opts)
	if err != nil {
		return err
	}
	return AddIdValues(s, path, values, opts)
}

// RemoveIdValuesInPlace is RemoveIdValues on the file at path.
func RemoveIdValuesInPlace(path string, ids []uint32, opts Options) (int, error) {
	s, err := ReadSections(path, opts)
	if err != nil {
		return 0, err
	}
	return RemoveIdValues(s, path, ids, opts)
}

// rewrite replaces the tail of dest, starting at the signing block, with a signing block
// holding pairs followed by the unchanged central directory and the EOCD pointing to its
// new position.
func rewrite(s *signingblock.Sections, dest string, pairs *signingblock.Pairs, opts Options) error {
	if err := s.Validate(); err != nil {
		return err
	}

	f, err := os.OpenFile(dest, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := checkCopy(f, s); err != nil {
		return fmt.Errorf("%s: %w", dest, err)
	}
	return rewriteTail(f, s, pairs, opts.Logger.With(slog.String("path", dest)))
}

// tailFile is the part of *os.File a rewrite uses.
type tailFile interface {
	io.WriteSeeker
	Truncate(size int64) error
}

func rewriteTail(f tailFile, s *signingblock.Sections, pairs *signingblock.Pairs, logger *slog.Logger) error {
	oldBlock := s.SigningBlock()
	block := signingblock.EncodePairs(pairs)
	delta := int64(len(block)) - oldBlock.Size()

	centralDirOffset := s.CentralDir().Offset() + delta
	if centralDirOffset > math.MaxUint32 {
		return fmt.Errorf("%w: central directory offset %d does not fit the EOCD record",
			ErrUnsupportedFormat, centralDirOffset)
	}
	eocd := s.Eocd().WithCentralDirOffset(uint32(centralDirOffset))
	newSize := s.FileSize() + delta

	logger.Debug("rewriting APK Signing Block",
		slog.Int64("offset", oldBlock.Offset()),
		slog.Int64("old_size", oldBlock.Size()),
		slog.Int("new_size", len(block)),
		slog.Int64("delta", delta))

	if _, err := f.Seek(oldBlock.Offset(), io.SeekStart); err != nil {
		return err
	}

	if _, err := f.Write(block); err != nil {
		return fmt.Errorf("failed to write APK Signing Block: %w", err)
	}

	s.Rewind()
	if _, err := io.Copy(f, s.CentralDir()); err != nil {
		return fmt.Errorf("failed to write central directory: %w", err)
	}

	if _, err := f.Write(eocd); err != nil {
		return fmt.Errorf("failed to write EOCD record: %w", err)
	}

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if pos != newSize {
		return fmt.Errorf("%w: %d, expected %d", ErrCorruptWrite, pos, newSize)
	}

	if err := f.Truncate(newSize); err != nil {
		return fmt.Errorf("failed to truncate: %w", err)
	}

	logger.Debug("APK rewritten",
		slog.Int64("size", newSize),
		slog.Int64("central_dir_offset", centralDirOffset))
	return nil
}

// checkCopy compares the size and the signing block of f with the base APK.
func checkCopy(f *os.File, s *signingblock.Sections) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() != s.FileSize() {
		return fmt.Errorf("%w: size %d, base APK size %d", ErrNotCopy, fi.Size(), s.FileSize())
	}

	block := s.SigningBlock()
	buf := make([]byte, block.Size())
	if _, err := f.ReadAt(buf, block.Offset()); err != nil {
		return err
	}
	if !bytes.Equal(buf, block.Bytes()) {
		return fmt.Errorf("%w: APK Signing Block differs", ErrNotCopy)
	}
	return nil
}
