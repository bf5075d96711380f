package main

import (
	"fmt"

	"github.com/denismitr/lime"
	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List all tables with their record counts",
	RunE:  runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(_ *cobra.Command, _ []string) error {
	return withStore(func(store *lime.Store) error {
		tables, err := store.ListTables()
		if err != nil {
			return err
		}

		if len(tables) == 0 {
			fmt.Println("no tables found")
			return nil
		}

		for _, name := range tables {
			n, err := store.Count(name)
			if err != nil {
				return err
			}

			fmt.Printf("%s: %d records\n", name, n)
		}

		return nil
	})
}
