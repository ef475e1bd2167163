package apkchannel

import (
	"log/slog"

	"github.com/avast/apkchannel/signingblock"
)

// Options configure reads and rewrites of an APK.
type Options struct {
	// LowMemory keeps the entries before the signing block out of memory. Rewrites
	// never touch them, so this only matters for reading Sections.
	LowMemory bool

	// Logger receives debug output of rewrites. Nil discards it.
	Logger *slog.Logger
}

// applyDefaults fills zero-valued options with defaults.
func (opts *Options) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
}

func (opts *Options) readOptions() signingblock.ReadOptions {
	return signingblock.ReadOptions{LowMemory: opts.LowMemory}
}

// ReadSections reads the regions of the APK at path, ready to be passed to the
// mutation functions.
func ReadSections(path string, opts Options) (*signingblock.Sections, error) {
	return signingblock.ReadSections(path, opts.readOptions())
}
