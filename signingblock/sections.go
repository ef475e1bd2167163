package signingblock

import (
	"fmt"
	"io"
	"os"
)

// ReadOptions controls how much of the file is held in memory.
type ReadOptions struct {
	// LowMemory skips loading the content region (everything before the signing block).
	// Only its position is kept, which is all a rewrite of the file tail needs.
	LowMemory bool
}

// Sections describes the four contiguous regions of a signed APK:
//
//	[content][APK Signing Block][central directory][EOCD]
//
// Sections always describes the file it was read from, even after that geometry has been
// written into a different (or the same) file, so one instance can serve repeated rewrites.
type Sections struct {
	fileSize     int64
	content      *Region
	signingBlock *Region
	centralDir   *Region
	eocd         *Eocd
	pairs        *Pairs
}

// ReadSections reads the regions of the APK at path.
func ReadSections(path string, opts ReadOptions) (*Sections, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return NewSections(f, fi.Size(), opts)
}

// NewSections reads the regions of an APK of fileSize bytes from r.
func NewSections(r io.ReaderAt, fileSize int64, opts ReadOptions) (*Sections, error) {
	s, err := readSections(r, fileSize, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// readSections is NewSections without the v2 signature requirement.
func readSections(r io.ReaderAt, fileSize int64, opts ReadOptions) (*Sections, error) {
	eocd, block, err := locate(r, fileSize)
	if err != nil {
		return nil, err
	}

	centralDirOffset := int64(eocd.CentralDirOffset())
	centralDir, err := readRegion(r, centralDirOffset, eocd.Offset()-centralDirOffset)
	if err != nil {
		return nil, fmt.Errorf("failed to read central directory: %w", err)
	}

	var content *Region
	if opts.LowMemory {
		content = newUnloadedRegion(0, block.Offset())
	} else if content, err = readRegion(r, 0, block.Offset()); err != nil {
		return nil, fmt.Errorf("failed to read content entries: %w", err)
	}

	pairs, err := DecodePairs(block.data)
	if err != nil {
		return nil, err
	}

	s := &Sections{
		fileSize:     fileSize,
		content:      content,
		signingBlock: block,
		centralDir:   centralDir,
		eocd:         eocd,
		pairs:        pairs,
	}
	if err := s.validateLayout(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the regions tile the file without gaps and that the
// signing block carries the v2 signature.
func (s *Sections) Validate() error {
	if err := s.validateLayout(); err != nil {
		return err
	}

	if !s.pairs.Has(BlockIdSchemeV2) {
		return fmt.Errorf("%w: %w", ErrInvalidSections, ErrMissingSignature)
	}
	return nil
}

func (s *Sections) validateLayout() error {
	if s.content == nil || s.signingBlock == nil || s.centralDir == nil || s.eocd == nil || s.pairs == nil {
		return fmt.Errorf("%w: incomplete sections", ErrInvalidSections)
	}

	switch {
	case s.content.Offset() != 0:
		return fmt.Errorf("%w: content starts at %d", ErrInvalidSections, s.content.Offset())
	case s.content.End() != s.signingBlock.Offset():
		return fmt.Errorf("%w: content ends at %d, signing block starts at %d",
			ErrInvalidSections, s.content.End(), s.signingBlock.Offset())
	case s.signingBlock.End() != s.centralDir.Offset():
		return fmt.Errorf("%w: signing block ends at %d, central directory starts at %d",
			ErrInvalidSections, s.signingBlock.End(), s.centralDir.Offset())
	case s.centralDir.End() != s.eocd.Offset():
		return fmt.Errorf("%w: central directory ends at %d, EOCD starts at %d",
			ErrInvalidSections, s.centralDir.End(), s.eocd.Offset())
	case s.eocd.End() != s.fileSize:
		return fmt.Errorf("%w: EOCD ends at %d, file size is %d",
			ErrInvalidSections, s.eocd.End(), s.fileSize)
	case int64(s.eocd.CentralDirOffset()) != s.centralDir.Offset():
		return fmt.Errorf("%w: CentralDirOffset mismatch, EOCD: %d, central directory: %d",
			ErrInvalidSections, s.eocd.CentralDirOffset(), s.centralDir.Offset())
	}
	return nil
}

// Rewind resets the read cursor of every loaded region.
func (s *Sections) Rewind() {
	s.content.Rewind()
	s.signingBlock.Rewind()
	s.centralDir.Rewind()
	s.eocd.region.Rewind()
}

func (s *Sections) FileSize() int64       { return s.fileSize }
func (s *Sections) Content() *Region      { return s.content }
func (s *Sections) SigningBlock() *Region { return s.signingBlock }
func (s *Sections) CentralDir() *Region   { return s.centralDir }
func (s *Sections) Eocd() *Eocd           { return s.eocd }

// Pairs returns a copy of the decoded ID-value pairs.
func (s *Sections) Pairs() *Pairs {
	return s.pairs.Clone()
}

func (s *Sections) String() string {
	return fmt.Sprintf("apkSize: %d, content: %s, signingBlock: %s, centralDir: %s, eocd: %s",
		s.fileSize, s.content, s.signingBlock, s.centralDir, s.eocd.region)
}
