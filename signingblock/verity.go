package signingblock

import (
	"bytes"
	"crypto"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"math"
)

const (
	verityChunkSize = 4096
	verityAlgo      = crypto.SHA256
)

// verityTree hashes data into a merkle tree of 4096 byte pages. The bottom level holds one
// digest per data page, every level above holds one digest per page of the level below,
// and the tree ends at the level that fits into a single page.
type verityTree struct {
	salt   []byte
	hasher hash.Hash
}

func newVerityTreeBuilder(salt []byte) *verityTree {
	return &verityTree{
		salt:   salt,
		hasher: verityAlgo.New(),
	}
}

// apkVerityDigest is the content digest signed by the verity signature algorithms:
// the tree root hash followed by the little endian length of the digested data.
func (t *verityTree) apkVerityDigest(contents ...dataSource) ([]byte, error) {
	data := newChainedDataSource(contents...)
	root, err := t.rootHash(data)
	if err != nil {
		return nil, err
	}
	return binary.LittleEndian.AppendUint64(root, uint64(data.length())), nil
}

func (t *verityTree) rootHash(data dataSource) ([]byte, error) {
	if data.length() == 0 {
		return nil, errors.New("verity tree of empty data")
	}

	levels, err := verityLevelOffsets(data.length(), int64(t.hasher.Size()))
	if err != nil {
		return nil, err
	}

	// Levels are stored top first, so the tree is filled from its end.
	tree := make([]byte, levels[len(levels)-1])
	src := data
	for i := len(levels) - 2; i >= 0; i-- {
		level := tree[levels[i]:levels[i+1]]
		if err := t.hashPages(src, level); err != nil {
			return nil, err
		}
		src = &dataSourceBytes{data: level}
	}
	return t.digest(tree[:verityChunkSize]), nil
}

// verityLevelOffsets returns the start of every level in the tree buffer, top level first,
// followed by the total buffer size. Each level is padded to whole pages.
func verityLevelOffsets(dataSize, digestSize int64) ([]int64, error) {
	var sizes []int64
	for {
		pages := divideRoundup(dataSize, verityChunkSize)
		sizes = append(sizes, verityChunkSize*divideRoundup(pages*digestSize, verityChunkSize))
		if pages*digestSize <= verityChunkSize {
			break
		}
		dataSize = pages * digestSize
	}

	offsets := make([]int64, len(sizes)+1)
	for i := range sizes {
		offsets[i+1] = offsets[i] + sizes[len(sizes)-i-1]
		if offsets[i+1] > math.MaxInt32 {
			return nil, fmt.Errorf("verity tree too large: %d bytes", offsets[i+1])
		}
	}
	return offsets, nil
}

// hashPages writes the digest of every page of src into dst. The last page is zero padded,
// as is the unused tail of dst.
func (t *verityTree) hashPages(src dataSource, dst []byte) error {
	page := bytes.NewBuffer(make([]byte, 0, verityChunkSize))
	var written int
	for offset := int64(0); offset < src.length(); offset += verityChunkSize {
		size := min(src.length()-offset, verityChunkSize)

		page.Reset()
		if err := src.writeTo(page, offset, size); err != nil {
			return err
		}
		page.Write(make([]byte, verityChunkSize-size))

		sum := t.digest(page.Bytes())
		if written+len(sum) > len(dst) {
			return errors.New("verity level overflow")
		}
		written += copy(dst[written:], sum)
	}
	return nil
}

func (t *verityTree) digest(data []byte) []byte {
	t.hasher.Reset()
	if len(t.salt) != 0 {
		t.hasher.Write(t.salt)
	}
	t.hasher.Write(data)
	return t.hasher.Sum(nil)
}

func divideRoundup(dividend, divisor int64) int64 {
	return (dividend + divisor - 1) / divisor
}
