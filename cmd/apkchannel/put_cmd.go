package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avast/apkchannel"
	"github.com/avast/apkchannel/comment"
)

func init() {
	rootCmd.AddCommand(putCmd())
}

func putCmd() *cobra.Command {
	var inputPath string
	var outputPath string
	var channel string
	var idStr string
	var value string
	var modeStr string
	var lowMemory bool

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Write a channel or an ID-value pair",
		Long: `Write a channel, or with --id any ID-value pair, into an APK.

Without --output the input APK is modified in place. With --output the input is
copied first and only the copy is modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (channel == "") == (idStr == "") {
				return errors.New("exactly one of --channel and --id is required")
			}

			opts := options(lowMemory)
			target := inputPath
			if outputPath != "" {
				target = outputPath
			}

			if idStr != "" {
				id, err := parseID(idStr)
				if err != nil {
					return err
				}

				s, err := apkchannel.ReadSections(inputPath, opts)
				if err != nil {
					return err
				}
				if outputPath != "" {
					if err := copyFile(inputPath, outputPath); err != nil {
						return err
					}
				}
				if err := apkchannel.AddIdValue(s, target, id, []byte(value), opts); err != nil {
					return err
				}
				fmt.Printf("Wrote 0x%08x (%d bytes) into %s\n", id, len(value), target)
				return nil
			}

			mode, err := apkchannel.ParseMode(modeStr)
			if err != nil {
				return err
			}

			if outputPath == "" {
				if err := putChannelInPlace(inputPath, channel, mode, opts); err != nil {
					return err
				}
			} else {
				w, err := apkchannel.NewChannelWriter(inputPath, mode, opts)
				if err != nil {
					return err
				}
				if err := w.Write(outputPath, channel); err != nil {
					return err
				}
			}

			fmt.Printf("Wrote channel %q into %s\n", channel, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input APK file (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write into a copy of the input at this path")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Channel to write")
	cmd.Flags().StringVar(&idStr, "id", "", "ID of the pair to write, decimal or 0x hex")
	cmd.Flags().StringVar(&value, "value", "", "Value of the pair to write")
	cmd.Flags().StringVar(&modeStr, "mode", apkchannel.ModeAuto.String(), "Channel location: auto, v1 (ZIP comment) or v2 (APK Signing Block)")
	cmd.Flags().BoolVar(&lowMemory, "low-memory", false, "Do not load the APK entries into memory")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func putChannelInPlace(path, channel string, mode apkchannel.Mode, opts apkchannel.Options) error {
	if mode == apkchannel.ModeAuto {
		var err error
		if mode, err = apkchannel.DetectMode(path); err != nil {
			return err
		}
	}

	switch mode {
	case apkchannel.ModeV1:
		return comment.Write(path, channel)
	case apkchannel.ModeV2:
		s, err := apkchannel.ReadSections(path, opts)
		if err != nil {
			return err
		}
		return apkchannel.PutChannel(s, path, channel, opts)
	default:
		return fmt.Errorf("unsupported mode %s", mode)
	}
}
