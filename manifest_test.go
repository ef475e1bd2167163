package apkchannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	data := "Signature-Version: 1.0\r\n" +
		"Created-By: 1.0 (Android)\r\n" +
		"X-Android-APK-Signed: 2, 3\r\n" +
		"\r\n" +
		"Name: res/drawable/a_very_long_resource_name_that_does_not_fit_on_one_li\n" +
		" ne.png\n" +
		"SHA-256-Digest: abc=\n" +
		"\n" +
		"Name: classes.dex\r" +
		"SHA-256-Digest: def=\r"

	m, err := parseManifest([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "1.0", m.main[attrSignatureVersion])
	assert.Equal(t, "2, 3", m.main[attrAndroidApkSigned])
	require.Len(t, m.entries, 2)
	assert.Equal(t, "abc=", m.entries["res/drawable/a_very_long_resource_name_that_does_not_fit_on_one_line.png"]["SHA-256-Digest"])
	assert.Equal(t, "def=", m.entries["classes.dex"]["SHA-256-Digest"])
}

func TestParseManifestErrors(t *testing.T) {
	for _, data := range []string{
		"",
		"Signature-Version 1.0\r\n",
		"Bad Name: x\r\n",
		" continuation\r\n",
		"A: 1\r\n\r\nSHA-256-Digest: abc\r\n",
		"A: 1\r\n\r\nName: x\r\n\r\nName: x\r\n",
		"A: \x00\r\n",
	} {
		_, err := parseManifest([]byte(data))
		assert.Error(t, err, "%q", data)
	}
}

func TestStrippedSchemes(t *testing.T) {
	scheme := &schemeV1{signatureFiles: map[string]*manifest{
		"META-INF/CERT.SF": {main: map[string]string{attrAndroidApkSigned: "2,3"}},
		"META-INF/OLD.SF":  {main: map[string]string{}},
	}}

	stripped, err := scheme.strippedSchemes([]int{2, 3})
	require.NoError(t, err)
	assert.Empty(t, stripped)

	stripped, err = scheme.strippedSchemes([]int{2})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, stripped)

	scheme.signatureFiles["META-INF/CERT.SF"].main[attrAndroidApkSigned] = "two"
	_, err = scheme.strippedSchemes(nil)
	assert.Error(t, err)
}
