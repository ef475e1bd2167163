package signingblock

import (
	"fmt"
)

const (
	SchemeIdV1 = 1
	SchemeIdV2 = 2
	SchemeIdV3 = 3
)

// VerificationResult is the outcome of VerifyDigests.
type VerificationResult struct {
	// Schemes whose recorded content digests match the file, in ascending order.
	Schemes []int

	Warnings []string
	Errors   []error
}

func (r *VerificationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *VerificationResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Errorf(format, args...))
}

func (r *VerificationResult) ContainsErrors() bool {
	return len(r.Errors) != 0
}

func (r *VerificationResult) GetLastError() error {
	if l := len(r.Errors); l != 0 {
		return r.Errors[l-1]
	}
	return nil
}

// Verified reports whether at least one scheme verified and nothing failed.
func (r *VerificationResult) Verified() bool {
	return len(r.Schemes) != 0 && !r.ContainsErrors()
}
