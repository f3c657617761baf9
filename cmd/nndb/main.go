// Command nndb is the CLI surface over the embedded document store (spec
// section 6): register/select a database, list tables and indexes, explain
// attribute types, analyse record-size distribution, find by index with a
// post-filter query, and show unique index keys with duplicate counts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oddjobz/nndb"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "nndb",
	Short: "nndb - embedded document store on an ordered key-value engine",
	Long:  `An embedded, schemaless document store built on a memory-mapped ordered key-value engine, with secondary indexes derived from key templates.`,
}

func openDatabase() (*nndb.Database, error) {
	if dbPath == "" {
		dbPath = "."
	}
	return nndb.Open(dbPath)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "nndb: %v\n", err)
	os.Exit(1)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database directory (default: current directory)")
	rootCmd.AddCommand(
		tablesCmd,
		indexesCmd,
		schemaCmd,
		sizesCmd,
		findCmd,
		distinctCmd,
	)
	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}
