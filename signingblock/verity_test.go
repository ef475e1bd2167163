package signingblock

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageDigest(page []byte) []byte {
	padded := make([]byte, verityChunkSize)
	copy(padded, page)
	sum := sha256.Sum256(padded)
	return sum[:]
}

func TestVerityDigestSinglePage(t *testing.T) {
	data := []byte("hello verity")

	digest, err := newVerityTreeBuilder(nil).apkVerityDigest(&dataSourceBytes{data: data})
	require.NoError(t, err)

	root := pageDigest(pageDigest(data))
	expected := binary.LittleEndian.AppendUint64(root, uint64(len(data)))
	assert.Equal(t, expected, digest)
}

func TestVerityDigestTwoLevels(t *testing.T) {
	// 129 page digests do not fit into one page.
	data := bytes.Repeat([]byte{0x5c}, 129*verityChunkSize-100)

	var bottom []byte
	for off := 0; off < len(data); off += verityChunkSize {
		bottom = append(bottom, pageDigest(data[off:min(off+verityChunkSize, len(data))])...)
	}
	require.Len(t, bottom, 129*sha256.Size)

	top := append(pageDigest(bottom[:verityChunkSize]), pageDigest(bottom[verityChunkSize:])...)
	root := pageDigest(top)

	// The data is split across sources to cross a source boundary mid page.
	digest, err := newVerityTreeBuilder(nil).apkVerityDigest(
		&dataSourceBytes{data: data[:5000]},
		&dataSourceBytes{data: data[5000:]},
	)
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian.AppendUint64(root, uint64(len(data))), digest)
}

func TestVerityLevelOffsets(t *testing.T) {
	offsets, err := verityLevelOffsets(verityChunkSize, sha256.Size)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, verityChunkSize}, offsets)

	offsets, err = verityLevelOffsets(129*verityChunkSize, sha256.Size)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, verityChunkSize, 3 * verityChunkSize}, offsets)
}

func TestSliceWindow(t *testing.T) {
	buf := []byte{1, 2, 3, 4}

	w, err := sliceWindow(buf, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, w)

	for _, bounds := range [][2]int{{-1, 2}, {3, 2}, {0, 5}} {
		_, err := sliceWindow(buf, bounds[0], bounds[1])
		assert.Error(t, err)
	}
}
