package main

import (
	"fmt"

	"github.com/denismitr/lime"
	"github.com/spf13/cobra"
)

var (
	findTable string
	findID    string
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Print one record by id, or all records of a table",
	RunE:  runFind,
}

func init() {
	findCmd.Flags().StringVarP(&findTable, "table", "t", "", "table name (required)")
	findCmd.Flags().StringVarP(&findID, "id", "i", "", "record id")
	_ = findCmd.MarkFlagRequired("table")

	rootCmd.AddCommand(findCmd)
}

func runFind(_ *cobra.Command, _ []string) error {
	return withStore(func(store *lime.Store) error {
		if findID != "" {
			rec, ok, err := store.FindByID(findTable, findID)
			if err != nil {
				return err
			}

			if !ok {
				fmt.Println("record not found")
				return nil
			}

			return printRecord(rec)
		}

		records, err := store.FindAll(findTable)
		if err != nil {
			return err
		}

		fmt.Printf("found %d records\n", len(records))
		for _, rec := range records {
			if err := printRecord(rec); err != nil {
				return err
			}
		}

		return nil
	})
}
