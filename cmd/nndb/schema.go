package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var schemaSampleLimit int

var schemaCmd = &cobra.Command{
	Use:   "schema <table>",
	Short: "Infer and print the attribute types observed across a sample of documents",
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

		types := map[string]map[string]int{}
		n := 0
		for {
			if schemaSampleLimit > 0 && n >= schemaSampleLimit {
				break
			}
			doc, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			n++
			for attr, v := range doc {
				if attr == "_id" {
					continue
				}
				kind := goTypeName(v)
				if types[attr] == nil {
					types[attr] = map[string]int{}
				}
				types[attr][kind]++
			}
		}

		attrs := make([]string, 0, len(types))
		for a := range types {
			attrs = append(attrs, a)
		}
		sort.Strings(attrs)
		for _, a := range attrs {
			kinds := types[a]
			kindNames := make([]string, 0, len(kinds))
			for k := range kinds {
				kindNames = append(kindNames, k)
			}
			sort.Strings(kindNames)
			fmt.Printf("%s:\n", a)
			for _, k := range kindNames {
				fmt.Printf("  %s\t%d\n", k, kinds[k])
			}
		}
		fmt.Printf("sampled %d document(s)\n", n)
		return nil
	},
}

func goTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64, float32, int, int64:
		return "number"
	case string:
		return "string"
	case []byte:
		return "bytes"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func init() {
	schemaCmd.Flags().IntVar(&schemaSampleLimit, "limit", 1000, "maximum documents to sample (0 = all)")
}
