package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avast/apkchannel"
)

func init() {
	rootCmd.AddCommand(verifyCmd())
}

func verifyCmd() *cobra.Command {
	var inputPath string
	var channel string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the content digests and optionally the channel",
		Long: `Recompute the content digests recorded in the v2 and v3 signature blocks and
check that the APK still opens as a ZIP file. With --channel, also check that the
APK carries that channel.

Signer certificates and signatures are not checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			verifier := apkchannel.DigestVerifier{Logger: newLogger()}

			if channel != "" {
				if err := apkchannel.VerifyChannel(inputPath, channel, verifier); err != nil {
					return err
				}
				fmt.Printf("Channel: %s\n", channel)
			}

			res, err := verifier.Verify(inputPath)
			if err != nil {
				return err
			}

			fmt.Printf("Verified: %v\nSchemes:  %v\n", res.Verified, res.Schemes)
			for _, e := range res.Errors {
				fmt.Printf("  error: %s\n", e.Error())
			}

			if !res.Verified {
				return errors.New("verification failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input APK file (required)")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Expected channel")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}
