package signingblock

import "errors"

// Structural errors. None of them is transient, callers match them with errors.Is.
var (
	ErrNotAnArchive      = errors.New("EOCD record not found")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrMalformedEocd     = errors.New("malformed EOCD record")
	ErrNoSigningBlock    = errors.New("no APK Signing Block before ZIP Central Directory")
	ErrSizeMismatch      = errors.New("APK Signing Block size mismatch")
	ErrInvalidSections   = errors.New("invalid APK sections")
	ErrEmptyContainer    = errors.New("no ID-value pairs in APK Signing Block")
	ErrTruncatedEntry    = errors.New("truncated APK Signing Block entry")
	ErrDuplicateID       = errors.New("duplicate ID in APK Signing Block")
	ErrMissingSignature  = errors.New("no APK Signature Scheme v2 block in APK Signing Block")

	// ErrCorruptWrite means the rewritten tail did not end where it had to.
	// The destination file is in an undefined state and must be restored from a copy.
	ErrCorruptWrite = errors.New("APK rewrite ended at unexpected offset")
)

type signingBlockNotFoundError struct {
	err error
}

func (e *signingBlockNotFoundError) Error() string {
	return "Signature Block not found: " + e.err.Error()
}

func (e *signingBlockNotFoundError) Unwrap() error {
	return e.err
}

// IsNotFoundError reports whether err means the file carries no usable signing block,
// as opposed to an I/O failure.
func IsNotFoundError(err error) bool {
	var nf *signingBlockNotFoundError
	return errors.As(err, &nf)
}
