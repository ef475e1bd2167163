package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avast/apkchannel"
)

func init() {
	rootCmd.AddCommand(getCmd())
}

func getCmd() *cobra.Command {
	var inputPath string
	var idStr string
	var hexOutput bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the channel or the value of an ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if idStr == "" {
				channel, err := apkchannel.GetChannel(inputPath)
				if err != nil {
					return err
				}
				fmt.Println(channel)
				return nil
			}

			id, err := parseID(idStr)
			if err != nil {
				return err
			}

			v, err := apkchannel.GetIdValue(inputPath, id)
			if err != nil {
				return err
			} else if v == nil {
				return errors.New("id not present")
			}

			if hexOutput {
				fmt.Printf("%x\n", v)
			} else {
				fmt.Println(string(v))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input APK file (required)")
	cmd.Flags().StringVar(&idStr, "id", "", "ID to print instead of the channel, decimal or 0x hex")
	cmd.Flags().BoolVar(&hexOutput, "hex", false, "Print the value hex encoded")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}
