package signingblock_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkchannel/internal/apktest"
	"github.com/avast/apkchannel/signingblock"
)

func TestPairsRoundTrip(t *testing.T) {
	p := signingblock.NewPairs()
	p.Set(signingblock.BlockIdSchemeV2, []byte("signature"))
	p.Set(0x881155ff, []byte("huawei"))
	p.Set(7, []byte{})
	p.Set(3, []byte{0xff, 0x00, 0xff})

	encoded := signingblock.EncodePairs(p)
	assert.EqualValues(t, p.EncodedSize(), len(encoded))

	decoded, err := signingblock.DecodePairs(encoded)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
	assert.Equal(t, []uint32{signingblock.BlockIdSchemeV2, 0x881155ff, 7, 3}, decoded.IDs())
}

func TestDecodePairsEmptyValue(t *testing.T) {
	block := apktest.EncodeSigningBlock([]apktest.Pair{{ID: 7}})

	decoded, err := signingblock.DecodePairs(block)
	require.NoError(t, err)
	v, ok := decoded.Get(7)
	require.True(t, ok)
	assert.NotNil(t, v)
	assert.Empty(t, v)

	clone, _ := decoded.Clone().Get(7)
	assert.NotNil(t, clone)
}

func TestEncodePairsMatchesBlockLayout(t *testing.T) {
	p := signingblock.NewPairs()
	p.Set(1, []byte("one"))
	p.Set(2, []byte("two"))

	expected := apktest.EncodeSigningBlock([]apktest.Pair{
		{ID: 1, Value: []byte("one")},
		{ID: 2, Value: []byte("two")},
	})
	assert.Equal(t, expected, signingblock.EncodePairs(p))
}

func TestPairsOrder(t *testing.T) {
	p := signingblock.NewPairs()
	p.Set(1, []byte("a"))
	p.Set(2, []byte("b"))
	p.Set(3, []byte("c"))

	p.Set(1, []byte("A"))
	assert.Equal(t, []uint32{1, 2, 3}, p.IDs())

	assert.True(t, p.Delete(2))
	assert.False(t, p.Delete(2))
	assert.Equal(t, []uint32{1, 3}, p.IDs())

	var values []string
	for _, v := range p.All() {
		values = append(values, string(v))
	}
	assert.Equal(t, []string{"A", "c"}, values)

	other := signingblock.NewPairs()
	other.Set(3, []byte("c"))
	other.Set(1, []byte("A"))
	assert.False(t, p.Equal(other))
}

func TestPairsClone(t *testing.T) {
	p := signingblock.NewPairs()
	p.Set(1, []byte("value"))

	c := p.Clone()
	v, _ := c.Get(1)
	v[0] = 'V'
	c.Set(2, nil)

	orig, _ := p.Get(1)
	assert.Equal(t, []byte("value"), orig)
	assert.False(t, p.Has(2))
}

func TestDecodePairsErrors(t *testing.T) {
	valid := apktest.EncodeSigningBlock([]apktest.Pair{{ID: 1, Value: []byte("abcd")}})

	t.Run("empty", func(t *testing.T) {
		_, err := signingblock.DecodePairs(apktest.EncodeSigningBlock(nil))
		require.ErrorIs(t, err, signingblock.ErrEmptyContainer)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := signingblock.DecodePairs(valid[:20])
		require.ErrorIs(t, err, signingblock.ErrTruncatedEntry)
	})

	t.Run("entry overruns block", func(t *testing.T) {
		block := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint64(block[8:], 1000)
		_, err := signingblock.DecodePairs(block)
		require.ErrorIs(t, err, signingblock.ErrTruncatedEntry)
	})

	t.Run("entry shorter than id", func(t *testing.T) {
		block := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint64(block[8:], 2)
		_, err := signingblock.DecodePairs(block)
		require.ErrorIs(t, err, signingblock.ErrTruncatedEntry)
	})

	t.Run("repeated id", func(t *testing.T) {
		block := apktest.EncodeSigningBlock([]apktest.Pair{
			{ID: 1, Value: []byte("first")},
			{ID: 2, Value: []byte("other")},
			{ID: 1, Value: []byte("second")},
		})
		_, err := signingblock.DecodePairs(block)
		require.ErrorIs(t, err, signingblock.ErrDuplicateID)
		assert.ErrorContains(t, err, "#3")
	})

	t.Run("dangling size", func(t *testing.T) {
		// Room for a size field's worth of bytes is missing after the first entry.
		block := apktest.EncodeSigningBlock([]apktest.Pair{{ID: 1, Value: []byte("abcd")}})
		withTail := append(append([]byte(nil), block[:len(block)-24]...), 0x01, 0x02, 0x03)
		withTail = append(withTail, block[len(block)-24:]...)
		_, err := signingblock.DecodePairs(withTail)
		require.ErrorIs(t, err, signingblock.ErrTruncatedEntry)
	})
}
