package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"

	"github.com/avast/apkchannel"
	"github.com/avast/apkchannel/signingblock"
)

func init() {
	rootCmd.AddCommand(listCmd())
}

var blockNames = map[uint32]string{
	signingblock.BlockIdSchemeV2:      "APK Signature Scheme v2",
	signingblock.BlockIdSchemeV3:      "APK Signature Scheme v3",
	signingblock.BlockIdSchemeV31:     "APK Signature Scheme v3.1",
	signingblock.BlockIdSourceStamp:   "source stamp",
	signingblock.BlockIdVerityPadding: "verity padding",
	apkchannel.ChannelBlockID:         "channel",
}

func listCmd() *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the regions and ID-value pairs of an APK",
		RunE: func(cmd *cobra.Command, args []string) error {
			zr, err := zip.OpenReader(inputPath)
			if err != nil {
				return fmt.Errorf("failed to open ZIP: %w", err)
			}
			entries := len(zr.File)
			zr.Close()

			fmt.Printf("File:    %s\n", inputPath)
			fmt.Printf("Entries: %d\n", entries)

			s, err := apkchannel.ReadSections(inputPath, apkchannel.Options{LowMemory: true})
			if signingblock.IsNotFoundError(err) {
				fmt.Printf("No APK Signing Block: %s\n", err.Error())
				if channel, err := apkchannel.GetChannel(inputPath); err == nil {
					fmt.Printf("Channel (ZIP comment): %s\n", channel)
				}
				return nil
			} else if err != nil {
				return err
			}

			fmt.Printf("Regions: %s\n\n", s)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSIZE\tNAME\tVALUE")
			for id, v := range s.Pairs().All() {
				fmt.Fprintf(w, "0x%08x\t%d\t%s\t%s\n", id, len(v), blockNames[id], printableValue(id, v))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input APK file (required)")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// printableValue shows short UTF-8 values of non-signature pairs.
func printableValue(id uint32, v []byte) string {
	if _, known := blockNames[id]; known && id != apkchannel.ChannelBlockID {
		return ""
	}
	if len(v) > 64 || !utf8.Valid(v) {
		return fmt.Sprintf("(%d bytes)", len(v))
	}
	return fmt.Sprintf("%q", v)
}
