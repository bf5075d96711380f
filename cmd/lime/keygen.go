package main

import (
	"encoding/hex"
	"fmt"

	"github.com/denismitr/lime"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new 256 bit encryption key",
	RunE: func(_ *cobra.Command, _ []string) error {
		key, err := lime.GenerateKey()
		if err != nil {
			return err
		}

		fmt.Println(hex.EncodeToString(key))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
