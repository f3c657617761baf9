package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var allTables bool

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		var names []string
		if allTables {
			names, err = db.TablesAll()
		} else {
			names, err = db.Tables()
		}
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

func init() {
	tablesCmd.Flags().BoolVar(&allTables, "all", false, "include reserved sub-databases")
}
