package signingblock_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkchannel/internal/apktest"
	"github.com/avast/apkchannel/signingblock"
)

func TestFindEocdWithoutComment(t *testing.T) {
	a := apktest.Build(t, apktest.Options{})

	eocd, err := signingblock.FindEocd(bytes.NewReader(a.Data), int64(len(a.Data)))
	require.NoError(t, err)

	assert.Equal(t, a.EocdOffset, eocd.Offset())
	assert.EqualValues(t, signingblock.EocdMinSize, eocd.Size())
	assert.EqualValues(t, len(a.Data), eocd.End())
	assert.EqualValues(t, a.CentralDirOffset, eocd.CentralDirOffset())
	assert.EqualValues(t, a.EocdOffset-a.CentralDirOffset, eocd.CentralDirSize())
	assert.Zero(t, eocd.CommentLength())
	assert.Empty(t, eocd.Comment())
}

func TestFindEocdWithComment(t *testing.T) {
	a := apktest.Build(t, apktest.Options{Comment: "release build"})

	eocd, err := signingblock.FindEocd(bytes.NewReader(a.Data), int64(len(a.Data)))
	require.NoError(t, err)

	assert.Equal(t, a.EocdOffset, eocd.Offset())
	assert.EqualValues(t, len("release build"), eocd.CommentLength())
	assert.Equal(t, []byte("release build"), eocd.Comment())
	assert.EqualValues(t, len(a.Data), eocd.End())
}

func TestFindEocdSkipsSignatureInComment(t *testing.T) {
	// A record signature inside the comment whose comment length does not reach
	// the end of the file.
	fake := "PK\x05\x06" + strings.Repeat("\x00", 16) + "\xff\xff" + "trailer!"
	a := apktest.Build(t, apktest.Options{Comment: fake})

	eocd, err := signingblock.FindEocd(bytes.NewReader(a.Data), int64(len(a.Data)))
	require.NoError(t, err)
	assert.Equal(t, a.EocdOffset, eocd.Offset())
	assert.Equal(t, []byte(fake), eocd.Comment())
}

func TestFindEocdNotAnArchive(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("short"),
		bytes.Repeat([]byte{0xab}, 4096),
	} {
		_, err := signingblock.FindEocd(bytes.NewReader(data), int64(len(data)))
		require.ErrorIs(t, err, signingblock.ErrNotAnArchive)
	}
}

func TestIsZip64(t *testing.T) {
	a := apktest.Build(t, apktest.Options{})

	zip64, err := signingblock.IsZip64(bytes.NewReader(a.Data), a.EocdOffset)
	require.NoError(t, err)
	assert.False(t, zip64)

	data := apktest.InjectZip64Locator(a.Data, a.EocdOffset)
	zip64, err = signingblock.IsZip64(bytes.NewReader(data), a.EocdOffset+20)
	require.NoError(t, err)
	assert.True(t, zip64)

	_, err = signingblock.NewSections(bytes.NewReader(data), int64(len(data)), signingblock.ReadOptions{})
	require.ErrorIs(t, err, signingblock.ErrUnsupportedFormat)
	assert.True(t, signingblock.IsNotFoundError(err))
}

func TestEocdWithCentralDirOffset(t *testing.T) {
	a := apktest.Build(t, apktest.Options{Comment: "c"})

	eocd, err := signingblock.FindEocd(bytes.NewReader(a.Data), int64(len(a.Data)))
	require.NoError(t, err)
	original := eocd.Bytes()

	patched := eocd.WithCentralDirOffset(0x01020304)
	require.Len(t, patched, len(original))
	assert.EqualValues(t, 0x01020304, binary.LittleEndian.Uint32(patched[16:]))
	assert.Equal(t, original[:16], patched[:16])
	assert.Equal(t, original[20:], patched[20:])

	assert.EqualValues(t, a.CentralDirOffset, eocd.CentralDirOffset())
	assert.Equal(t, original, eocd.Bytes())

	// Bytes hands out copies.
	original[0] = 0
	assert.NotEqual(t, original, eocd.Bytes())
}
