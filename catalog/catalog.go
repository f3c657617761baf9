// Package catalog persists the table and index catalog (spec component C5)
// in the reserved __metadata__ bucket: one entry per index, keyed
// "_<table>_<index>", valued {conf, func} (spec sections 3 and 6).
package catalog

import (
	"strings"

	json "github.com/goccy/go-json"

	"github.com/oddjobz/nndb/kvengine"
	"github.com/oddjobz/nndb/nndberr"
)

// BucketName is the reserved sub-database the catalog lives in.
const BucketName = "__metadata__"

// Conf is an index's persisted configuration record.
type Conf struct {
	Key     string `json:"key"`     // sub-db name, "_<table>_<index>"
	Dupsort bool   `json:"dupsort"`
	Create  bool   `json:"create"`
}

// Entry is the full {conf, func} record spec's metadata catalog stores.
type Entry struct {
	Conf Conf   `json:"conf"`
	Func string `json:"func"`
}

// Key builds the reserved metadata key for a (table, index) pair.
func Key(table, index string) []byte {
	return []byte("_" + table + "_" + index)
}

// Prefix builds the scan prefix used to list every index of a table.
func Prefix(table string) []byte {
	return []byte("_" + table + "_")
}

// Put writes (or overwrites) the catalog entry for (table, index).
func Put(tx *kvengine.Tx, table, index string, e Entry) error {
	b, err := tx.CreateBucketIfNotExists(BucketName)
	if err != nil {
		return nndberr.Wrap("catalog.Put", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nndberr.Wrap("catalog.Put", err)
	}
	return nndberr.Wrap("catalog.Put", b.Put(Key(table, index), data))
}

// Get reads the catalog entry for (table, index), if present.
func Get(tx *kvengine.Tx, table, index string) (Entry, bool, error) {
	var e Entry
	b := tx.Bucket(BucketName)
	if b == nil {
		return e, false, nil
	}
	data := b.Get(Key(table, index))
	if data == nil {
		return e, false, nil
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, false, nndberr.Wrap("catalog.Get", err)
	}
	return e, true, nil
}

// Delete removes the catalog entry for (table, index). Not an error if
// absent.
func Delete(tx *kvengine.Tx, table, index string) error {
	b := tx.Bucket(BucketName)
	if b == nil {
		return nil
	}
	return nndberr.Wrap("catalog.Delete", b.Delete(Key(table, index)))
}

// List returns the index names declared for table, derived by scanning
// metadata keys sharing the "_<table>_" prefix (spec section 4.5).
func List(tx *kvengine.Tx, table string) ([]string, error) {
	b := tx.Bucket(BucketName)
	if b == nil {
		return nil, nil
	}
	prefix := Prefix(table)
	var names []string
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		names = append(names, strings.TrimPrefix(string(k), string(prefix)))
	}
	return names, nil
}

// DeleteTable removes every catalog entry belonging to table, as part of a
// Table.drop (spec section 3, invariant 4).
func DeleteTable(tx *kvengine.Tx, table string) error {
	names, err := List(tx, table)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := Delete(tx, table, n); err != nil {
			return err
		}
	}
	return nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
