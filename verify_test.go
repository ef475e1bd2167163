package apkchannel_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkchannel"
	"github.com/avast/apkchannel/internal/apktest"
)

func TestDigestVerifier(t *testing.T) {
	tests := []struct {
		name     string
		opts     apktest.Options
		verified bool
		schemes  []int
	}{
		{"v2", apktest.Options{}, true, []int{2}},
		{"v1 and v2", apktest.Options{JarSigned: true}, true, []int{1, 2}},
		{"v3", apktest.Options{V3Only: true}, true, []int{3}},
		{"v1", apktest.Options{Unsigned: true, JarSigned: true}, true, []int{1}},
		{"unsigned", apktest.Options{Unsigned: true}, false, nil},
		{"v2 stripped", apktest.Options{
			Unsigned: true,
			Files:    append(apktest.JarSignatureFiles("2"), apktest.DefaultFiles()...),
		}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _ := apktest.Write(t, "app.apk", tt.opts)

			res, err := apkchannel.DigestVerifier{}.Verify(path)
			require.NoError(t, err)
			assert.Equal(t, tt.verified, res.Verified, "%v", res.Errors)
			assert.Equal(t, tt.schemes, res.Schemes)
		})
	}
}

func TestDigestVerifierAfterMutation(t *testing.T) {
	path, _ := apktest.Write(t, "app.apk", apktest.Options{JarSigned: true, Comment: "comment"})

	require.NoError(t, apkchannel.AddIdValueInPlace(path, apkchannel.ChannelBlockID, []byte("channel"), apkchannel.Options{}))
	_, err := apkchannel.RemoveIdValuesInPlace(path, []uint32{apkchannel.ChannelBlockID}, apkchannel.Options{})
	require.NoError(t, err)
	require.NoError(t, apkchannel.AddIdValueInPlace(path, 0x5, []byte("five"), apkchannel.Options{}))

	res, err := apkchannel.DigestVerifier{}.Verify(path)
	require.NoError(t, err)
	assert.True(t, res.Verified, "%v", res.Errors)
	assert.Equal(t, []int{1, 2}, res.Schemes)
}

func TestDigestVerifierTampered(t *testing.T) {
	path, a := apktest.Write(t, "app.apk", apktest.Options{})

	data := append([]byte(nil), a.Data...)
	data[a.SigningBlockOffset/2] ^= 0x01
	require.NoError(t, os.WriteFile(path, data, 0o644))

	res, err := apkchannel.DigestVerifier{}.Verify(path)
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.NotEmpty(t, res.Errors)
}

func TestDigestVerifierNotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	_, err := apkchannel.DigestVerifier{}.Verify(path)
	require.ErrorIs(t, err, apkchannel.ErrNotAnArchive)
}
