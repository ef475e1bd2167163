package main

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/avast/apkchannel"
	"github.com/avast/apkchannel/internal/apktest"
)

func TestReadChannelList(t *testing.T) {
	input := "# stores\nhuawei\n\n  xiaomi  \r\n#oppo\nhuawei\nvivo"

	channels, err := readChannelList(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"huawei", "xiaomi", "vivo"}, channels)
}

func TestReadChannelListRejectsPaths(t *testing.T) {
	for _, input := range []string{"../evil", `a\b`, ".."} {
		_, err := readChannelList(strings.NewReader("ok\n" + input))
		assert.ErrorContains(t, err, "line 2", input)
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "app-release_huawei.apk", outputName("build/outputs/app-release.apk", "huawei"))
	assert.Equal(t, "base_vivo.apk", outputName("base", "vivo"))
}

func TestParseID(t *testing.T) {
	id, err := parseID("0x881155ff")
	require.NoError(t, err)
	assert.Equal(t, apkchannel.ChannelBlockID, id)

	id, err = parseID("42")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	_, err = parseID("0x1ffffffff")
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	base, _ := apktest.Write(t, "app.apk", apktest.Options{})
	dir := filepath.Dir(base)

	channelFile := filepath.Join(dir, "channel.txt")
	require.NoError(t, os.WriteFile(channelFile, []byte("huawei\nxiaomi\n"), 0o644))
	outDir := filepath.Join(dir, "out")

	cmd := batchCmd()
	cmd.SetArgs([]string{"-i", base, "-c", channelFile, "-o", outDir, "--verify", "--quiet"})
	require.NoError(t, cmd.Execute())

	manifest, err := os.ReadFile(filepath.Join(outDir, manifestName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	require.Len(t, lines, 2)

	for i, channel := range []string{"huawei", "xiaomi"} {
		path := filepath.Join(outDir, "app_"+channel+".apk")

		got, err := apkchannel.GetChannel(path)
		require.NoError(t, err)
		assert.Equal(t, channel, got)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		sum := blake3.Sum256(data)
		assert.Equal(t, filepath.Base(path), strings.Fields(lines[i])[1])
		assert.Equal(t, hex.EncodeToString(sum[:]), strings.Fields(lines[i])[0])
	}
}
