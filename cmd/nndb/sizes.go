package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/oddjobz/nndb"
)

var sizesCmd = &cobra.Command{
	Use:   "sizes <table>",
	Short: "Analyse the serialized record-size distribution of a table",
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

		it, err := t.Range("", nil, nil, true)
		if err != nil {
			return err
		}
		defer func() { _ = it.Close() }()

		var sizes []int
		var total int64
		for {
			doc, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			sz, err := nndb.DocumentSize(doc)
			if err != nil {
				return err
			}
			sizes = append(sizes, sz)
			total += int64(sz)
		}
		if len(sizes) == 0 {
			fmt.Println("no documents")
			return nil
		}
		sort.Ints(sizes)
		fmt.Printf("count=%d total=%d min=%d max=%d mean=%.1f p50=%d p99=%d\n",
			len(sizes), total, sizes[0], sizes[len(sizes)-1],
			float64(total)/float64(len(sizes)),
			percentile(sizes, 50), percentile(sizes, 99))
		return nil
	},
}

func percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
