package apkchannel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkchannel"
	"github.com/avast/apkchannel/comment"
	"github.com/avast/apkchannel/internal/apktest"
)

func TestGetIdValueAbsent(t *testing.T) {
	path, _ := apktest.Write(t, "app.apk", apktest.Options{})

	v, err := apkchannel.GetIdValue(path, 0x1234)
	require.NoError(t, err)
	assert.Nil(t, v)

	s, ok, err := apkchannel.GetStringValue(path, 0x1234)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s)
}

func TestGetStringValue(t *testing.T) {
	path, _ := apktest.Write(t, "app.apk", apktest.Options{Pairs: []apktest.Pair{{ID: 0x10, Value: []byte("ünïcode")}}})

	s, ok, err := apkchannel.GetStringValue(path, 0x10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ünïcode", s)
}

func TestGetIdValueEmpty(t *testing.T) {
	path, _ := apktest.Write(t, "app.apk", apktest.Options{})
	require.NoError(t, apkchannel.AddIdValueInPlace(path, 0x55, []byte{}, apkchannel.Options{}))

	v, err := apkchannel.GetIdValue(path, 0x55)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Empty(t, v)

	s, ok, err := apkchannel.GetStringValue(path, 0x55)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", s)

	pairs, err := apkchannel.GetAllIdValues(path)
	require.NoError(t, err)
	assert.True(t, pairs.Has(0x55))
}

func TestGetChannel(t *testing.T) {
	t.Run("signing block", func(t *testing.T) {
		path, _ := apktest.Write(t, "app.apk", apktest.Options{Pairs: []apktest.Pair{
			{ID: apkchannel.ChannelBlockID, Value: []byte("googleplay")},
		}})

		channel, err := apkchannel.GetChannel(path)
		require.NoError(t, err)
		assert.Equal(t, "googleplay", channel)
	})

	t.Run("comment", func(t *testing.T) {
		path, _ := apktest.Write(t, "app.apk", apktest.Options{Unsigned: true})
		require.NoError(t, comment.Write(path, "xiaomi"))

		channel, err := apkchannel.GetChannel(path)
		require.NoError(t, err)
		assert.Equal(t, "xiaomi", channel)
	})

	t.Run("none", func(t *testing.T) {
		for _, opts := range []apktest.Options{{}, {Unsigned: true}} {
			path, _ := apktest.Write(t, "app.apk", opts)
			_, err := apkchannel.GetChannel(path)
			require.ErrorIs(t, err, apkchannel.ErrNoChannel)
		}
	})
}
