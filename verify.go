package apkchannel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/avast/apkparser"

	"github.com/avast/apkchannel/signingblock"
)

// VerifyResult is the outcome of a signature check.
type VerifyResult struct {
	Verified bool
	// Schemes that passed, ascending. 1 is JAR signing, 2 and 3 are APK Signature Schemes.
	Schemes []int
	Errors  []error
}

// Verifier checks the signature of an APK. It is used to confirm that writing
// ID-value pairs did not break the signature.
type Verifier interface {
	// Verify returns an error when the file cannot be examined at all. A broken
	// signature is reported in the result.
	Verify(path string) (VerifyResult, error)
}

var ErrMixedDexApkFile = errors.New("This file is both DEX and ZIP archive! Exploit?")

const (
	dexHeaderMagic uint32 = 0xa786564 // "dex\n", littleendinan
)

// DigestVerifier recomputes the content digests of the v2 and v3 signature blocks and
// checks that the archive still opens as a ZIP file. A JAR signature counts as present
// when the manifest and a signature file with its signature block exist.
// Signatures and certificates are not checked, for that plug in a full verifier.
type DigestVerifier struct {
	Logger *slog.Logger
}

var _ Verifier = DigestVerifier{}

func (v DigestVerifier) Verify(path string) (res VerifyResult, err error) {
	logger := v.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	digests, err := signingblock.VerifyDigests(path)
	switch {
	case err == nil:
		res.Schemes = append(res.Schemes, digests.Schemes...)
		res.Errors = append(res.Errors, digests.Errors...)
		for _, w := range digests.Warnings {
			logger.Warn("signing block warning", slog.String("path", path), slog.String("warning", w))
		}
	case !signingblock.IsNotFoundError(err) || errors.Is(err, ErrNotAnArchive):
		return VerifyResult{}, err
	}

	apk, err := apkparser.OpenZip(path)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("failed to open ZIP: %w", err))
		return res, nil
	}
	defer apk.Close()

	scheme, err := newSchemeV1(apk)
	switch {
	case err == nil:
		stripped, err := scheme.strippedSchemes(res.Schemes)
		if err != nil {
			res.Errors = append(res.Errors, err)
		} else if len(stripped) != 0 {
			res.Errors = append(res.Errors, fmt.Errorf("JAR signature claims schemes %v, which are not present", stripped))
		} else {
			res.Schemes = append(res.Schemes, signingblock.SchemeIdV1)
		}
	case !errors.Is(err, errNoSchemeV1):
		res.Errors = append(res.Errors, err)
	}

	slices.Sort(res.Schemes)

	if slices.Equal(res.Schemes, []int{signingblock.SchemeIdV1}) {
		if magic, err := readFileMagic(path); err != nil {
			return res, err
		} else if magic == dexHeaderMagic {
			res.Errors = append(res.Errors, ErrMixedDexApkFile)
		}
	}

	res.Verified = len(res.Schemes) != 0 && len(res.Errors) == 0
	logger.Debug("verified APK",
		slog.String("path", path),
		slog.Bool("verified", res.Verified),
		slog.Any("schemes", res.Schemes))
	return res, nil
}

func readFileMagic(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
