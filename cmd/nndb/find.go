package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/oddjobz/nndb/query"
)

var (
	findIndex string
	findWhere string
	findLimit int
)

var findCmd = &cobra.Command{
	Use:   "find <table>",
	Short: "Iterate a table (optionally via an index) with an optional post-filter query",
	Args:  cobra.ExactArgs(1),
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

		var pred query.Predicate
		if findWhere != "" {
			pred, err = query.Compile(findWhere)
			if err != nil {
				return fmt.Errorf("parsing --where: %w", err)
			}
		}

		it, err := t.Find(findIndex, pred, findLimit)
		if err != nil {
			return err
		}
		defer func() { _ = it.Close() }()

		enc := json.NewEncoder(cmd.OutOrStdout())
		for {
			doc, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if err := enc.Encode(doc); err != nil {
				return err
			}
		}
	},
}

func init() {
	findCmd.Flags().StringVar(&findIndex, "index", "", "index to iterate in key order (default: primary, id order)")
	findCmd.Flags().StringVar(&findWhere, "where", "", "post-filter query, e.g. \"status=open AND priority>1\"")
	findCmd.Flags().IntVar(&findLimit, "limit", 0, "maximum results (0 = unlimited)")
}
