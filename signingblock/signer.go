package signingblock

import (
	"bytes"
	"crypto"
	"encoding/binary"
	"errors"
	"fmt"
)

type SignatureAlgorithm int32

const (
	SigRsaPssWithSha256            SignatureAlgorithm = 0x0101
	SigRsaPssWithSha512            SignatureAlgorithm = 0x0102
	SigRsaPkcs1V15WithSha256       SignatureAlgorithm = 0x0103
	SigRsaPkcs1V15WithSha512       SignatureAlgorithm = 0x0104
	SigEcdsaWithSha256             SignatureAlgorithm = 0x0201
	SigEcdsaWithSha512             SignatureAlgorithm = 0x0202
	SigDsaWithSha256               SignatureAlgorithm = 0x0301
	SigVerityRsaPkcs1V15WithSha256 SignatureAlgorithm = 0x0421
	SigVerityEcdsaWithSha256       SignatureAlgorithm = 0x0423
	SigVerityDsaWithSha256         SignatureAlgorithm = 0x0425
)

const (
	veritySHA256 crypto.Hash = iota + 65535
)

func (algo SignatureAlgorithm) String() string {
	switch algo {
	case SigRsaPssWithSha256:
		return "SigRsaPssWithSha256"
	case SigRsaPssWithSha512:
		return "SigRsaPssWithSha512"
	case SigRsaPkcs1V15WithSha256:
		return "SigRsaPkcs1V15WithSha256"
	case SigRsaPkcs1V15WithSha512:
		return "SigRsaPkcs1V15WithSha512"
	case SigEcdsaWithSha256:
		return "SigEcdsaWithSha256"
	case SigEcdsaWithSha512:
		return "SigEcdsaWithSha512"
	case SigDsaWithSha256:
		return "SigDsaWithSha256"
	case SigVerityRsaPkcs1V15WithSha256:
		return "SigVerityRsaPkcs1V15WithSha256"
	case SigVerityEcdsaWithSha256:
		return "SigVerityEcdsaWithSha256"
	case SigVerityDsaWithSha256:
		return "SigVerityDsaWithSha256"
	}
	return fmt.Sprintf("0x%04x", uint32(algo))
}

// digestType returns the content digest the algorithm signs, or 0 for unknown algorithms.
func (algo SignatureAlgorithm) digestType() crypto.Hash {
	switch algo {
	case SigRsaPssWithSha256, SigRsaPkcs1V15WithSha256, SigEcdsaWithSha256, SigDsaWithSha256:
		return crypto.SHA256
	case SigVerityRsaPkcs1V15WithSha256, SigVerityEcdsaWithSha256, SigVerityDsaWithSha256:
		return veritySHA256
	case SigRsaPssWithSha512, SigRsaPkcs1V15WithSha512, SigEcdsaWithSha512:
		return crypto.SHA512
	default:
		return 0
	}
}

func getLenghtPrefixedSlice(r *bytes.Buffer) (*bytes.Buffer, error) {
	if r.Len() < 4 {
		return nil, fmt.Errorf("remaining buffer too short to contain length of length-prefixed field, remaining: %d", r.Len())
	}

	length := int32(binary.LittleEndian.Uint32(r.Next(4)))
	if length < 0 {
		return nil, errors.New("negative length")
	} else if int(length) > r.Len() {
		return nil, fmt.Errorf("length-prefixed field longer than remaining buffer, field length: %d, remaining: %d",
			length, r.Len())
	}
	return bytes.NewBuffer(r.Next(int(length))), nil
}

// parseSignerDigests collects the content digests listed by every signer of a v2 or v3
// signature block. Both schemes start each signer with the signed data, which starts
// with the digests:
//
//	signers: length-prefixed sequence of length-prefixed signer
//	signer:  length-prefixed signed data, ...
//	signed data: length-prefixed sequence of length-prefixed digest, ...
//	digest:  uint32 signature algorithm, length-prefixed digest bytes
//
// Signatures over the signed data are not checked here.
func parseSignerDigests(block []byte, contentDigests map[crypto.Hash][]byte, result *VerificationResult) {
	signers, err := getLenghtPrefixedSlice(bytes.NewBuffer(block))
	if err != nil {
		result.addError("failed to read list of signers: %s", err.Error())
		return
	}

	signerCount := 0
	for signers.Len() > 0 {
		signerCount++

		signer, err := getLenghtPrefixedSlice(signers)
		if err != nil {
			result.addError("failed to parse signer #%d block: %s", signerCount, err.Error())
			return
		}

		signedData, err := getLenghtPrefixedSlice(signer)
		if err != nil {
			result.addError("failed to read signed data of signer #%d: %s", signerCount, err.Error())
			return
		}

		digestsSlice, err := getLenghtPrefixedSlice(signedData)
		if err != nil {
			result.addError("failed to read digests from signedData of signer #%d: %s", signerCount, err.Error())
			return
		}

		if !parseDigests(digestsSlice, contentDigests, result) {
			return
		}
	}

	if signerCount == 0 {
		result.addError("no signers found")
	}
}

func parseDigests(digestsSlice *bytes.Buffer, contentDigests map[crypto.Hash][]byte, result *VerificationResult) (success bool) {
	digestCount := 0
	for digestsSlice.Len() > 0 {
		digestCount++

		digest, err := getLenghtPrefixedSlice(digestsSlice)
		if err != nil {
			result.addError("failed to parse digest #%d: %s", digestCount, err.Error())
			return
		} else if digest.Len() < 8 {
			result.addError("failed to parse digest #%d: record too short", digestCount)
			return
		}

		algo := SignatureAlgorithm(binary.LittleEndian.Uint32(digest.Next(4)))
		cd, err := getLenghtPrefixedSlice(digest)
		if err != nil {
			result.addError("failed to read content digest for digest #%d: %s", digestCount, err.Error())
			return
		}

		digestType := algo.digestType()
		if digestType == 0 {
			result.addWarning("digest #%d is using unsupported algorithm %s", digestCount, algo)
			continue
		}

		previous := contentDigests[digestType]
		if previous != nil && !bytes.Equal(previous, cd.Bytes()) {
			result.addError("%s contents digest does not match the digest specified by a preceding signer", algo)
			return
		}
		contentDigests[digestType] = cd.Bytes()
	}

	if digestCount == 0 {
		result.addError("no digests found")
		return
	}
	return true
}
