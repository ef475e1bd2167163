// Package apktest builds small APK-shaped archives for tests: a real ZIP file with an
// APK Signing Block inserted before the central directory. The v2 block in it lists
// correct content digests but carries no certificates or signatures.
package apktest

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

const (
	BlockIdSchemeV2 = 0x7109871a
	BlockIdSchemeV3 = 0xf05368c0

	sigRsaPkcs1V15WithSha256 = 0x0103
	sigRsaPkcs1V15WithSha512 = 0x0104

	chunkSize = 1024 * 1024
	eocdSize  = 22
)

var blockMagic = []byte("APK Sig Block 42")

// File is one archive entry.
type File struct {
	Name string
	Data []byte
}

// Pair is an extra ID-value pair placed after the v2 block.
type Pair struct {
	ID    uint32
	Value []byte
}

// Options describe the archive to build. The zero value yields a v2 signed APK
// with a few default entries.
type Options struct {
	Files   []File
	Comment string
	Pairs   []Pair

	// Unsigned leaves out the signing block, producing a plain ZIP file.
	Unsigned bool
	// WithoutV2 leaves the v2 block out of the signing block.
	WithoutV2 bool
	// V3Only stores the signature block under the v3 id instead of the v2 id.
	V3Only bool
	// JarSigned adds META-INF entries of a JAR signature.
	JarSigned bool
}

// Archive is a built APK and the positions of its regions.
type Archive struct {
	Data               []byte
	SigningBlockOffset int64
	CentralDirOffset   int64
	EocdOffset         int64
}

// DefaultFiles are used when Options.Files is empty.
func DefaultFiles() []File {
	return []File{
		{Name: "AndroidManifest.xml", Data: bytes.Repeat([]byte{0x03, 0x00, 0x08, 0x00}, 64)},
		{Name: "classes.dex", Data: append([]byte("dex\n035\x00"), bytes.Repeat([]byte("classdata"), 512)...)},
		{Name: "res/raw/readme.txt", Data: []byte("channel test fixture\n")},
	}
}

// JarSignatureFiles returns the META-INF entries of a JAR signed APK. A non-empty
// apkSigned is listed in the signature file as the schemes the APK is also signed with.
// The signature block file content is not a valid PKCS#7 structure.
func JarSignatureFiles(apkSigned string) []File {
	sf := "Signature-Version: 1.0\r\nCreated-By: apktest\r\n"
	if apkSigned != "" {
		sf += "X-Android-APK-Signed: " + apkSigned + "\r\n"
	}
	sf += "\r\nName: classes.dex\r\nSHA-256-Digest: AAAA\r\n\r\n"

	return []File{
		{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\r\nCreated-By: apktest\r\n\r\n")},
		{Name: "META-INF/CERT.SF", Data: []byte(sf)},
		{Name: "META-INF/CERT.RSA", Data: []byte{0x30, 0x82, 0x00, 0x00}},
	}
}

// Build returns the archive described by opts.
func Build(tb testing.TB, opts Options) *Archive {
	tb.Helper()

	files := opts.Files
	if len(files) == 0 {
		files = DefaultFiles()
	}
	if opts.JarSigned {
		var apkSigned string
		if !opts.Unsigned && !opts.WithoutV2 {
			apkSigned = "2"
		}
		files = append(JarSignatureFiles(apkSigned), files...)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate})
		if err != nil {
			tb.Fatal(err)
		}
		if _, err := w.Write(f.Data); err != nil {
			tb.Fatal(err)
		}
	}
	if opts.Comment != "" {
		if err := zw.SetComment(opts.Comment); err != nil {
			tb.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatal(err)
	}

	data := buf.Bytes()
	eocdOffset := len(data) - eocdSize - len(opts.Comment)
	cdOffset := int(binary.LittleEndian.Uint32(data[eocdOffset+16:]))

	if opts.Unsigned {
		return &Archive{
			Data:               data,
			SigningBlockOffset: -1,
			CentralDirOffset:   int64(cdOffset),
			EocdOffset:         int64(eocdOffset),
		}
	}

	content := data[:cdOffset]
	centralDir := data[cdOffset:eocdOffset]
	eocd := append([]byte(nil), data[eocdOffset:]...)

	var pairs []Pair
	if !opts.WithoutV2 {
		id := uint32(BlockIdSchemeV2)
		if opts.V3Only {
			id = BlockIdSchemeV3
		}
		// The EOCD still points at cdOffset, which is where the signing block will start.
		pairs = append(pairs, Pair{ID: id, Value: SchemeV2Block(content, centralDir, eocd)})
	}
	pairs = append(pairs, opts.Pairs...)
	block := EncodeSigningBlock(pairs)

	binary.LittleEndian.PutUint32(eocd[16:], uint32(cdOffset+len(block)))

	out := make([]byte, 0, len(data)+len(block))
	out = append(out, content...)
	out = append(out, block...)
	out = append(out, centralDir...)
	out = append(out, eocd...)

	return &Archive{
		Data:               out,
		SigningBlockOffset: int64(cdOffset),
		CentralDirOffset:   int64(cdOffset + len(block)),
		EocdOffset:         int64(cdOffset + len(block) + len(centralDir)),
	}
}

// Write builds the archive into a file named name inside a temporary directory
// and returns its path.
func Write(tb testing.TB, name string, opts Options) (string, *Archive) {
	tb.Helper()

	a := Build(tb, opts)
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		tb.Fatal(err)
	}
	return path, a
}

// Copy copies the file at src next to it under name and returns the new path.
func Copy(tb testing.TB, src, name string) string {
	tb.Helper()

	data, err := os.ReadFile(src)
	if err != nil {
		tb.Fatal(err)
	}
	dst := filepath.Join(filepath.Dir(src), name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		tb.Fatal(err)
	}
	return dst
}

// InjectZip64Locator returns a copy of data with a ZIP64 End of Central Directory
// Locator inserted right before the EOCD record at eocdOffset.
func InjectZip64Locator(data []byte, eocdOffset int64) []byte {
	locator := make([]byte, 20)
	binary.LittleEndian.PutUint32(locator, 0x07064b50)

	out := make([]byte, 0, len(data)+len(locator))
	out = append(out, data[:eocdOffset]...)
	out = append(out, locator...)
	out = append(out, data[eocdOffset:]...)
	return out
}

// EncodeSigningBlock serializes pairs into an APK Signing Block.
func EncodeSigningBlock(pairs []Pair) []byte {
	size := 8 + len(blockMagic)
	for _, p := range pairs {
		size += 8 + 4 + len(p.Value)
	}

	out := make([]byte, 0, size+8)
	out = binary.LittleEndian.AppendUint64(out, uint64(size))
	for _, p := range pairs {
		out = binary.LittleEndian.AppendUint64(out, uint64(4+len(p.Value)))
		out = binary.LittleEndian.AppendUint32(out, p.ID)
		out = append(out, p.Value...)
	}
	out = binary.LittleEndian.AppendUint64(out, uint64(size))
	return append(out, blockMagic...)
}

// SchemeV2Block returns a v2 signature block with one signer whose signed data lists
// the SHA-256 and SHA-512 content digests of the given regions. A v3 block starts the
// same way, so it serves as one too.
func SchemeV2Block(content, centralDir, eocd []byte) []byte {
	digests := lengthPrefixed(
		digestRecord(sigRsaPkcs1V15WithSha256, chunkedDigest(sha256.New, content, centralDir, eocd)),
		digestRecord(sigRsaPkcs1V15WithSha512, chunkedDigest(sha512.New, content, centralDir, eocd)),
	)
	signedData := lengthPrefixed(digests, lengthPrefixed(), lengthPrefixed())
	signer := lengthPrefixed(signedData, lengthPrefixed(), lengthPrefixed())
	return lengthPrefixed(signer)
}

func digestRecord(algo uint32, digest []byte) []byte {
	rec := binary.LittleEndian.AppendUint32(nil, algo)
	rec = binary.LittleEndian.AppendUint32(rec, uint32(len(digest)))
	return lengthPrefixed(append(rec, digest...))
}

// lengthPrefixed concatenates parts behind a uint32 length prefix.
func lengthPrefixed(parts ...[]byte) []byte {
	var size int
	for _, p := range parts {
		size += len(p)
	}
	out := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+size), uint32(size))
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func chunkedDigest(newHash func() hash.Hash, sections ...[]byte) []byte {
	var chunkDigests [][]byte
	for _, section := range sections {
		for off := 0; off < len(section); off += chunkSize {
			chunk := section[off:min(off+chunkSize, len(section))]

			h := newHash()
			h.Write([]byte{0xa5})
			h.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(chunk))))
			h.Write(chunk)
			chunkDigests = append(chunkDigests, h.Sum(nil))
		}
	}

	h := newHash()
	h.Write([]byte{0x5a})
	h.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(chunkDigests))))
	for _, d := range chunkDigests {
		h.Write(d)
	}
	return h.Sum(nil)
}
