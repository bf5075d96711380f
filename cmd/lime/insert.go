package main

import (
	"fmt"

	"github.com/denismitr/lime"
	"github.com/spf13/cobra"
)

var (
	insertTable string
	insertData  string
)

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a record into a table",
	RunE:  runInsert,
}

func init() {
	insertCmd.Flags().StringVarP(&insertTable, "table", "t", "", "table name (required)")
	insertCmd.Flags().StringVarP(&insertData, "data", "d", "", "record fields as a json object (required)")
	_ = insertCmd.MarkFlagRequired("table")
	_ = insertCmd.MarkFlagRequired("data")

	rootCmd.AddCommand(insertCmd)
}

func runInsert(_ *cobra.Command, _ []string) error {
	data, err := lime.ParseData([]byte(insertData))
	if err != nil {
		return err
	}

	return withStore(func(store *lime.Store) error {
		rec, err := store.Insert(insertTable, data)
		if err != nil {
			return err
		}

		fmt.Printf("record inserted, id: %s\n", rec.ID)
		return nil
	})
}
