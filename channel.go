package apkchannel

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/avast/apkchannel/comment"
	"github.com/avast/apkchannel/signingblock"
)

// Mode is where a channel is written.
type Mode int

const (
	// ModeAuto picks ModeV2 for APKs with a v2 signature and ModeV1 otherwise.
	ModeAuto Mode = iota
	// ModeV1 writes the channel into the archive comment.
	ModeV1
	// ModeV2 writes the channel into the APK Signing Block.
	ModeV2
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeV1:
		return "v1"
	case ModeV2:
		return "v2"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the result of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeAuto, ModeV1, ModeV2} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown channel mode %q", s)
}

// DetectMode returns ModeV2 when the APK at path has an APK Signing Block with a v2
// signature and ModeV1 for any other ZIP archive.
func DetectMode(path string) (Mode, error) {
	pairs, err := signingblock.ReadPairs(path)
	switch {
	case err == nil:
		if pairs.Has(signingblock.BlockIdSchemeV2) {
			return ModeV2, nil
		}
		return ModeV1, nil
	case errors.Is(err, ErrNotAnArchive), errors.Is(err, ErrUnsupportedFormat):
		return 0, err
	case signingblock.IsNotFoundError(err):
		return ModeV1, nil
	default:
		return 0, err
	}
}

// PutChannel stores channel under ChannelBlockID, see AddIdValue.
func PutChannel(s *signingblock.Sections, dest, channel string, opts Options) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	return AddIdValue(s, dest, ChannelBlockID, []byte(channel), opts)
}

// ChannelWriter writes channels into copies of one base APK. The base APK is parsed
// once. A ChannelWriter is not safe for concurrent use.
type ChannelWriter struct {
	base     string
	mode     Mode
	sections *signingblock.Sections
	opts     Options
}

// NewChannelWriter prepares writing channels into copies of the APK at base.
func NewChannelWriter(base string, mode Mode, opts Options) (*ChannelWriter, error) {
	opts.applyDefaults()

	if mode == ModeAuto {
		var err error
		if mode, err = DetectMode(base); err != nil {
			return nil, err
		}
	}

	w := &ChannelWriter{
		base: base,
		mode: mode,
		opts: opts,
	}

	if mode == ModeV2 {
		var err error
		if w.sections, err = ReadSections(base, opts); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *ChannelWriter) Mode() Mode {
	return w.mode
}

// Write copies the base APK to dest and writes channel into the copy.
// dest is removed when writing the channel fails.
func (w *ChannelWriter) Write(dest, channel string) (err error) {
	if channel == "" {
		return ErrEmptyChannel
	}

	if err := copyFile(w.base, dest); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(dest)
		}
	}()

	switch w.mode {
	case ModeV1:
		return comment.Write(dest, channel)
	case ModeV2:
		return PutChannel(w.sections, dest, channel, w.opts)
	default:
		return fmt.Errorf("unsupported channel mode %s", w.mode)
	}
}

// VerifyChannel checks that the APK at path holds channel and that v still accepts
// its signature.
func VerifyChannel(path, channel string, v Verifier) error {
	got, err := GetChannel(path)
	if err != nil {
		return err
	}
	if got != channel {
		return fmt.Errorf("%w: got %q, expected %q", ErrChannelMismatch, got, channel)
	}

	res, err := v.Verify(path)
	if err != nil {
		return err
	}
	if !res.Verified {
		return ErrSignatureBroken
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
