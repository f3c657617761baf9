package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oddjobz/nndb/catalog"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes <table>",
	Short: "List a table's indexes with their key template and duplicate-sort flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		table := args[0]
		tx, err := db.Begin(false)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Abort() }()

		names, err := catalog.List(tx.KV, table)
		if err != nil {
			return err
		}
		for _, name := range names {
			entry, ok, err := catalog.Get(tx.KV, table, name)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			fmt.Printf("%s\tdupsort=%v\t%s\n", name, entry.Conf.Dupsort, entry.Func)
		}
		return nil
	},
}
