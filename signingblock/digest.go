package signingblock

import (
	"bytes"
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"math"
	"os"
	"slices"
)

const maxChunkSize = 1024 * 1024

// VerifyDigests recomputes the content digests recorded by the v2 and v3 signers of the
// APK at path and compares them with the file. A rewrite of the signing block never
// changes the digested data, so this is how a rewrite is checked for damage.
// APKs signed with v3 only are checked too.
func VerifyDigests(path string) (*VerificationResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	s, err := readSections(f, fi.Size(), ReadOptions{LowMemory: true})
	if err != nil {
		return nil, err
	}
	return s.VerifyDigests(f), nil
}

// VerifyDigests checks the digests against file, which must be the file s was read from.
func (s *Sections) VerifyDigests(file io.ReaderAt) *VerificationResult {
	res := &VerificationResult{}

	schemes := []struct {
		id       uint32
		schemeId int
	}{
		{BlockIdSchemeV2, SchemeIdV2},
		{BlockIdSchemeV3, SchemeIdV3},
	}

	for _, scheme := range schemes {
		block, ok := s.pairs.Get(scheme.id)
		if !ok {
			continue
		}

		errCount := len(res.Errors)
		contentDigests := make(map[crypto.Hash][]byte)
		if parseSignerDigests(block, contentDigests, res); len(res.Errors) != errCount {
			continue
		}

		if s.verifyIntegrity(file, contentDigests, res) {
			res.Schemes = append(res.Schemes, scheme.schemeId)
		}
	}
	return res
}

func (s *Sections) verifyIntegrity(file io.ReaderAt, expectedDigests map[crypto.Hash][]byte, result *VerificationResult) bool {
	beforeApkSigningBlock := regionSource(file, s.content)
	centralDir := regionSource(file, s.centralDir)

	// For the purposes of integrity verification, ZIP End of Central Directory's field Start of
	// Central Directory must be considered to point to the offset of the APK Signing Block.
	eocd := &dataSourceBytes{data: s.eocd.WithCentralDirOffset(uint32(s.signingBlock.Offset()))}

	digestAlgorithms := make([]crypto.Hash, 0, len(expectedDigests))
	for algo := range expectedDigests {
		digestAlgorithms = append(digestAlgorithms, algo)
	}
	slices.Sort(digestAlgorithms)

	actualDigests, err := computeContentDigests(digestAlgorithms, beforeApkSigningBlock, centralDir, eocd)
	if err != nil {
		result.addError("failed to compute digest(s) of contents: %s", err.Error())
		return false
	}

	verified := true
	for i, algo := range digestAlgorithms {
		if !bytes.Equal(expectedDigests[algo], actualDigests[i]) {
			result.addError("%s digest of contents did not verify", digestName(algo))
			verified = false
		}
	}
	return verified
}

func digestName(algo crypto.Hash) string {
	if algo == veritySHA256 {
		return "verity SHA-256"
	}
	return algo.String()
}

func computeContentDigests(digestAlgorithms []crypto.Hash, contents ...dataSource) ([][]byte, error) {
	result := make([][]byte, len(digestAlgorithms))

	var chunkedAlgorithms []crypto.Hash
	var chunkedIndexes []int
	for i, algo := range digestAlgorithms {
		if algo != veritySHA256 {
			chunkedAlgorithms = append(chunkedAlgorithms, algo)
			chunkedIndexes = append(chunkedIndexes, i)
			continue
		}

		digest, err := newVerityTreeBuilder(nil).apkVerityDigest(contents...)
		if err != nil {
			return nil, err
		}
		result[i] = digest
	}

	if len(chunkedAlgorithms) == 0 {
		return result, nil
	}

	digests, err := computeChunkedDigests(chunkedAlgorithms, contents...)
	if err != nil {
		return nil, err
	}
	for j, i := range chunkedIndexes {
		result[i] = digests[j]
	}
	return result, nil
}

func computeChunkedDigests(digestAlgorithms []crypto.Hash, contents ...dataSource) ([][]byte, error) {
	var totalChunkCount int64
	for _, input := range contents {
		totalChunkCount += input.chunkCount()
	}

	if totalChunkCount >= math.MaxInt32/1024 {
		return nil, fmt.Errorf("too many chunks: %d", totalChunkCount)
	}

	digestsOfChunks := make([][]byte, len(digestAlgorithms))
	hashers := make([]hash.Hash, len(digestAlgorithms))
	for i, algo := range digestAlgorithms {
		if !algo.Available() {
			return nil, fmt.Errorf("digest algorithm %d not available", algo)
		}

		buf := make([]byte, 5+totalChunkCount*int64(algo.Size()))
		buf[0] = 0x5a
		binary.LittleEndian.PutUint32(buf[1:], uint32(totalChunkCount))

		digestsOfChunks[i] = buf
		hashers[i] = algo.New()
	}

	chunkContentPrefix := make([]byte, 5)
	chunkContentPrefix[0] = 0xa5

	chunkIndex := 0
	for inputIdx, input := range contents {
		var offset int64
		remaining := input.length()
		for remaining > 0 {
			chunkSize := min(remaining, maxChunkSize)
			binary.LittleEndian.PutUint32(chunkContentPrefix[1:], uint32(chunkSize))

			for i := range hashers {
				hashers[i].Write(chunkContentPrefix)

				if err := input.writeTo(hashers[i], offset, chunkSize); err != nil {
					return nil, fmt.Errorf("failed to digest chunk #%d of section #%d: %w", chunkIndex, inputIdx, err)
				}

				sum := hashers[i].Sum(nil)
				hashers[i].Reset()

				copy(digestsOfChunks[i][5+chunkIndex*len(sum):], sum)
			}
			offset += chunkSize
			remaining -= chunkSize
			chunkIndex++
		}
	}

	result := make([][]byte, len(digestAlgorithms))
	for i := range digestsOfChunks {
		hashers[i].Write(digestsOfChunks[i])
		result[i] = hashers[i].Sum(nil)
	}
	return result, nil
}
