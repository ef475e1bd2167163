// Package apkchannel stores ID-value pairs, such as the distribution channel of an APK,
// in the APK Signing Block and reads them back.
//
// The APK Signing Block is not covered by the v2 and v3 signatures, so adding pairs to it
// keeps those signatures valid. APKs signed with the JAR scheme only have no such block;
// for them the channel goes into the archive comment instead (see package comment).
//
// Mutations are not safe for concurrent use on the same file and cannot be cancelled.
// A failure during the write phase leaves the file in an undefined state, so callers
// needing atomicity should write into a copy and swap it into place afterwards.
package apkchannel

import (
	"errors"

	"github.com/avast/apkchannel/signingblock"
)

// ChannelBlockID is the id the channel string is stored under.
const ChannelBlockID uint32 = 0x881155ff

var (
	ErrReservedID      = errors.New("ID is reserved for the APK Signature Scheme v2 block")
	ErrNoValues        = errors.New("no ID-value pairs to write")
	ErrNoChannel       = errors.New("no channel found in APK")
	ErrEmptyChannel    = errors.New("empty channel")
	ErrChannelMismatch = errors.New("channel read back does not match")
	ErrSignatureBroken = errors.New("APK signature does not verify")
	ErrNotCopy         = errors.New("destination is not a copy of the base APK")
)

// Errors of the APK structure, see package signingblock.
var (
	ErrNotAnArchive      = signingblock.ErrNotAnArchive
	ErrUnsupportedFormat = signingblock.ErrUnsupportedFormat
	ErrMalformedEocd     = signingblock.ErrMalformedEocd
	ErrNoSigningBlock    = signingblock.ErrNoSigningBlock
	ErrSizeMismatch      = signingblock.ErrSizeMismatch
	ErrInvalidSections   = signingblock.ErrInvalidSections
	ErrEmptyContainer    = signingblock.ErrEmptyContainer
	ErrTruncatedEntry    = signingblock.ErrTruncatedEntry
	ErrDuplicateID       = signingblock.ErrDuplicateID
	ErrMissingSignature  = signingblock.ErrMissingSignature
	ErrCorruptWrite      = signingblock.ErrCorruptWrite
)
