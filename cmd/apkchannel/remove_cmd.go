package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avast/apkchannel"
)

func init() {
	rootCmd.AddCommand(removeCmd())
}

func removeCmd() *cobra.Command {
	var inputPath string
	var idStrs []string
	var lowMemory bool

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove ID-value pairs from the APK Signing Block",
		Long: `Remove ID-value pairs from the APK Signing Block, in place.

Without --id the channel is removed. The v2 signature block is never removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := []uint32{apkchannel.ChannelBlockID}
			if len(idStrs) != 0 {
				ids = ids[:0]
				for _, s := range idStrs {
					id, err := parseID(s)
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
			}

			removed, err := apkchannel.RemoveIdValuesInPlace(inputPath, ids, options(lowMemory))
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d pair(s) from %s\n", removed, inputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input APK file (required)")
	cmd.Flags().StringSliceVar(&idStrs, "id", nil, "IDs to remove, decimal or 0x hex (default: the channel)")
	cmd.Flags().BoolVar(&lowMemory, "low-memory", false, "Do not load the APK entries into memory")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}
