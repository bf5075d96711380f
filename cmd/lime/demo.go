package main

import (
	"encoding/json"
	"fmt"

	"github.com/denismitr/lime"
	"github.com/spf13/cobra"
)

const demoDataDir = "./demo_data"
const demoPreviewLimit = 3

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Seed a sample database with users, products and orders",
	RunE:  runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	if !cmd.Flag("data-dir").Changed {
		dataDir = demoDataDir
	}

	return withStore(func(store *lime.Store) error {
		if err := seedDemoData(store); err != nil {
			return err
		}

		fmt.Println("sample database created with the following tables:")

		tables, err := store.ListTables()
		if err != nil {
			return err
		}

		for _, name := range tables {
			n, err := store.Count(name)
			if err != nil {
				return err
			}

			fmt.Printf("  %s: %d records\n", name, n)

			records, err := store.FindAll(name)
			if err != nil {
				return err
			}

			for i, rec := range records {
				if i == demoPreviewLimit {
					fmt.Printf("    ... and %d more\n", len(records)-demoPreviewLimit)
					break
				}

				b, err := json.Marshal(rec.Data)
				if err != nil {
					return err
				}

				fmt.Printf("    %s %s\n", rec.ID, string(b))
			}
		}

		return nil
	})
}

func seedDemoData(store *lime.Store) error {
	users := []lime.M{
		{
			"name":   lime.String("Alice Chen"),
			"age":    lime.Int(25),
			"email":  lime.String("alice@example.com"),
			"active": lime.Bool(true),
		},
		{
			"name":   lime.String("Bob Smith"),
			"age":    lime.Int(30),
			"email":  lime.String("bob@example.com"),
			"active": lime.Bool(false),
		},
		{
			"name":   lime.String("Carol Jones"),
			"age":    lime.Int(28),
			"email":  lime.String("carol@example.com"),
			"active": lime.Bool(true),
		},
	}

	for _, u := range users {
		if _, err := store.Insert("users", u); err != nil {
			return err
		}
	}

	products := []lime.M{
		{
			"name":     lime.String("laptop"),
			"price":    lime.Float(5999.99),
			"category": lime.String("electronics"),
			"in_stock": lime.Bool(true),
		},
		{
			"name":     lime.String("smartphone"),
			"price":    lime.Float(2999.50),
			"category": lime.String("electronics"),
			"in_stock": lime.Bool(true),
		},
		{
			"name":     lime.String("coffee machine"),
			"price":    lime.Float(899.00),
			"category": lime.String("appliances"),
			"in_stock": lime.Bool(false),
		},
	}

	for _, p := range products {
		if _, err := store.Insert("products", p); err != nil {
			return err
		}
	}

	order := lime.M{
		"user_name":    lime.String("Alice Chen"),
		"product_name": lime.String("laptop"),
		"quantity":     lime.Int(1),
		"total":        lime.Float(5999.99),
		"status":       lime.String("paid"),
	}

	if _, err := store.Insert("orders", order); err != nil {
		return err
	}

	return store.SaveAll()
}
