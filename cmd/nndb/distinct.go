package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var distinctCmd = &cobra.Command{
	Use:   "distinct <table> <index>",
	Short: "Show unique index keys with their duplicate counts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		t, err := db.Table(args[0])
		if err != nil {
			return err
		}
		ix, ok := t.IndexByName(args[1])
		if !ok {
			return fmt.Errorf("no such index: %s", args[1])
		}

		tx, err := db.Begin(false)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Abort() }()

		keys, err := ix.Distinct(tx.KV)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Printf("%q\t%d\n", k.Key, k.Count)
		}
		return nil
	},
}
