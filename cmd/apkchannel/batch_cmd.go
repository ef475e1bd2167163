package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"github.com/zeebo/blake3"

	"github.com/avast/apkchannel"
)

const manifestName = "blake3sums.txt"

func init() {
	rootCmd.AddCommand(batchCmd())
}

type batchResult struct {
	channel string
	path    string
	digest  string
	err     error
}

func batchCmd() *cobra.Command {
	var inputPath string
	var channelFile string
	var outputDir string
	var modeStr string
	var verify bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Write one copy of an APK per channel",
		Long: `Copy the input APK once for every channel listed in the channel file and
write the channel into each copy. Copies are named <apk name>_<channel>.apk.

A BLAKE3 digest of every copy is written to ` + manifestName + ` in the output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := apkchannel.ParseMode(modeStr)
			if err != nil {
				return err
			}

			f, err := os.Open(channelFile)
			if err != nil {
				return err
			}
			channels, err := readChannelList(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", channelFile, err)
			}
			if len(channels) == 0 {
				return fmt.Errorf("%s: no channels", channelFile)
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}

			opts := options(true)
			w, err := apkchannel.NewChannelWriter(inputPath, mode, opts)
			if err != nil {
				return err
			}

			var progress *mpb.Progress
			var bar *mpb.Bar
			if !quiet {
				progress = mpb.New(mpb.WithWidth(60))
				bar = progress.AddBar(int64(len(channels)),
					mpb.PrependDecorators(
						decor.Name("Channels", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
						decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
					),
					mpb.AppendDecorators(
						decor.Percentage(decor.WC{W: 5}),
					),
				)
			}

			results := make([]batchResult, 0, len(channels))
			for _, channel := range channels {
				res := batchResult{
					channel: channel,
					path:    filepath.Join(outputDir, outputName(inputPath, channel)),
				}

				res.err = w.Write(res.path, channel)
				if res.err == nil && verify {
					res.err = apkchannel.VerifyChannel(res.path, channel, apkchannel.DigestVerifier{Logger: opts.Logger})
				}
				if res.err == nil {
					res.digest, res.err = fileDigest(res.path)
				}

				results = append(results, res)
				if bar != nil {
					bar.Increment()
				}
			}

			if progress != nil {
				progress.Wait()
			}

			var failed int
			for _, res := range results {
				if res.err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "  %s: %s\n", res.channel, res.err.Error())
				}
			}

			if err := writeDigestManifest(filepath.Join(outputDir, manifestName), results); err != nil {
				return err
			}

			fmt.Printf("Wrote %d of %d channel APKs (%s mode) into %s\n",
				len(results)-failed, len(results), w.Mode(), outputDir)
			if failed != 0 {
				return fmt.Errorf("finished with %d errors", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Base APK file (required)")
	cmd.Flags().StringVarP(&channelFile, "channels", "c", defaultChannelFile, "File with one channel per line")
	cmd.Flags().StringVarP(&outputDir, "output", "o", defaultOutputDir, "Output directory")
	cmd.Flags().StringVar(&modeStr, "mode", apkchannel.ModeAuto.String(), "Channel location: auto, v1 (ZIP comment) or v2 (APK Signing Block)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Read the channel back and check the digests of every copy")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Hide the progress bar")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeDigestManifest writes "<digest>  <file name>" lines for the successful results.
func writeDigestManifest(path string, results []batchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	for _, res := range results {
		if res.err != nil {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s  %s\n", res.digest, filepath.Base(res.path)); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
