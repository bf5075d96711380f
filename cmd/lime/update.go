package main

import (
	"fmt"

	"github.com/denismitr/lime"
	"github.com/spf13/cobra"
)

var (
	updateTable string
	updateID    string
	updateData  string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace the fields of an existing record",
	RunE:  runUpdate,
}

func init() {
	updateCmd.Flags().StringVarP(&updateTable, "table", "t", "", "table name (required)")
	updateCmd.Flags().StringVarP(&updateID, "id", "i", "", "record id (required)")
	updateCmd.Flags().StringVarP(&updateData, "data", "d", "", "new record fields as a json object (required)")
	_ = updateCmd.MarkFlagRequired("table")
	_ = updateCmd.MarkFlagRequired("id")
	_ = updateCmd.MarkFlagRequired("data")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(_ *cobra.Command, _ []string) error {
	data, err := lime.ParseData([]byte(updateData))
	if err != nil {
		return err
	}

	return withStore(func(store *lime.Store) error {
		rec, err := store.Update(updateTable, updateID, data)
		if err != nil {
			return err
		}

		fmt.Println("record updated")
		return printRecord(rec)
	})
}
