package main

import (
	"fmt"

	"github.com/denismitr/lime"
	"github.com/spf13/cobra"
)

var (
	deleteTable string
	deleteID    string
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a record by id",
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteTable, "table", "t", "", "table name (required)")
	deleteCmd.Flags().StringVarP(&deleteID, "id", "i", "", "record id (required)")
	_ = deleteCmd.MarkFlagRequired("table")
	_ = deleteCmd.MarkFlagRequired("id")

	rootCmd.AddCommand(deleteCmd)
}

func runDelete(_ *cobra.Command, _ []string) error {
	return withStore(func(store *lime.Store) error {
		if err := store.Delete(deleteTable, deleteID); err != nil {
			return err
		}

		fmt.Println("record deleted")
		return nil
	})
}
