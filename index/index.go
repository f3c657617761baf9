// Package index implements one secondary index (spec component C3): a
// bucket holding derived_key -> primary_id entries, built from a compiled
// key template, with optional duplicate-sorted mode.
//
// bbolt has no native dup-sort bucket the way LMDB/MDBX do, so a dupsort
// index stores a composite physical key (derivedKey, then id) instead of
// derivedKey alone. The derivedKey is variable length, so it cannot simply
// be concatenated with id: "A" and "AB" would then encode as "A"+id and
// "AB"+id, and an id byte can easily sort below 'B', putting "A"+id after
// "AB"+id even though "A" < "AB". The fix, the tuple-encoding trick
// andreyvit/edb also layers on top of bbolt, is to make the derivedKey
// self-terminating: every literal 0x00 byte in it is escaped to 0x00 0xFF,
// and the whole thing ends with a bare 0x00 0x00 terminator that cannot
// appear inside an escaped key. Two composite keys then compare bytewise
// exactly the way their derivedKeys do — a terminator byte sorts below
// every possible continuation — so physical bbolt order matches spec
// section 4.3's "sorted by bytewise key ascending" for dupsort indexes of
// any key length, and entries sharing a derivedKey still group together,
// differing only in their trailing id bytes.
package index

import (
	"bytes"

	"github.com/oddjobz/nndb/document"
	"github.com/oddjobz/nndb/kvengine"
	"github.com/oddjobz/nndb/nndberr"
	"github.com/oddjobz/nndb/template"
)

// Config is the persisted shape spec's metadata catalog keeps per index.
type Config struct {
	Key     string
	Dupsort bool
	Create  bool
}

// BucketName builds "_<table>_<index>" (spec section 3, invariant 3).
func BucketName(table, name string) string {
	return "_" + table + "_" + name
}

// Index is one secondary index on a table.
type Index struct {
	Name  string
	Table string
	Tmpl  *template.Template
	Cfg   Config
}

// New builds an Index from a compiled template. It does not touch storage;
// callers open/create the bucket separately (spec section 3: index
// creation inserts metadata, opens the sub-db, and reindexes, all in one
// transaction).
func New(table, name string, tmpl *template.Template, dupsort bool) *Index {
	return &Index{
		Name:  name,
		Table: table,
		Tmpl:  tmpl,
		Cfg: Config{
			Key:     BucketName(table, name),
			Dupsort: dupsort,
			Create:  true,
		},
	}
}

// Open ensures the index's bucket exists.
func (ix *Index) Open(tx *kvengine.Tx) error {
	_, err := tx.CreateBucketIfNotExists(ix.Cfg.Key)
	return nndberr.Wrap("Index.Open", err)
}

func (ix *Index) bucket(tx *kvengine.Tx) *kvengine.Bucket {
	return tx.Bucket(ix.Cfg.Key)
}

// escapeKey renders key as a self-terminating byte string: each literal
// 0x00 becomes 0x00 0xFF, and the result ends with a bare 0x00 0x00 that
// cannot occur inside the escaped content. Appending anything after this
// terminator — in particular an id — never changes how two escaped keys
// compare against each other.
func escapeKey(key []byte) []byte {
	out := make([]byte, 0, len(key)+2)
	for _, b := range key {
		if b == 0x00 {
			out = append(out, 0x00, 0xFF)
		} else {
			out = append(out, b)
		}
	}
	return append(out, 0x00, 0x00)
}

// encodeComposite builds the dupsort physical key for (derivedKey, id).
func encodeComposite(key, id []byte) []byte {
	out := escapeKey(key)
	return append(out, id...)
}

// decodeComposite splits a dupsort physical key back into the original
// (unescaped) derivedKey and its trailing id.
func decodeComposite(composite []byte) (key, id []byte, ok bool) {
	for i := 0; i < len(composite); i++ {
		b := composite[i]
		if b != 0x00 {
			key = append(key, b)
			continue
		}
		if i+1 >= len(composite) {
			return nil, nil, false
		}
		switch composite[i+1] {
		case 0xFF:
			key = append(key, 0x00)
			i++
		case 0x00:
			return key, composite[i+2:], true
		default:
			return nil, nil, false
		}
	}
	return nil, nil, false
}

// Put derives k = key_fn(doc); if defined, writes k -> id and reports true.
// Under dupsort, writing an existing (k, id) pair is a no-op.
func (ix *Index) Put(tx *kvengine.Tx, id []byte, doc document.Document) (bool, error) {
	key, ok := ix.Tmpl.Eval(doc)
	if !ok {
		return false, nil
	}
	b, err := tx.CreateBucketIfNotExists(ix.Cfg.Key)
	if err != nil {
		return false, nndberr.Wrap("Index.Put", err)
	}
	if ix.Cfg.Dupsort {
		composite := encodeComposite(key, id)
		if b.Get(composite) != nil {
			return false, nil
		}
		if err := b.Put(composite, id); err != nil {
			return false, nndberr.Wrap("Index.Put", err)
		}
		return true, nil
	}
	if err := b.Put(key, id); err != nil {
		return false, nndberr.Wrap("Index.Put", err)
	}
	return true, nil
}

// Delete removes the specific k -> id pair derived from doc. In dupsort
// mode only that exact pair is removed; in non-dupsort mode the key is only
// removed if it currently points at id, so a later document that collided
// on the same key and overwrote it is not clobbered.
func (ix *Index) Delete(tx *kvengine.Tx, id []byte, doc document.Document) error {
	key, ok := ix.Tmpl.Eval(doc)
	if !ok {
		return nil
	}
	b := ix.bucket(tx)
	if b == nil {
		return nil
	}
	if ix.Cfg.Dupsort {
		return nndberr.Wrap("Index.Delete", b.Delete(encodeComposite(key, id)))
	}
	if existing := b.Get(key); existing != nil && bytes.Equal(existing, id) {
		return nndberr.Wrap("Index.Delete", b.Delete(key))
	}
	return nil
}

// Save reindexes id from oldDoc to newDoc. A no-op when the derived key is
// unchanged. When the old key cannot be found, this is a ReindexMismatch:
// the on-disk index has drifted from the primary record.
func (ix *Index) Save(tx *kvengine.Tx, id []byte, oldDoc, newDoc document.Document) error {
	oldKey, oldOK := ix.Tmpl.Eval(oldDoc)
	newKey, newOK := ix.Tmpl.Eval(newDoc)
	if oldOK && newOK && bytes.Equal(oldKey, newKey) {
		return nil
	}

	b, err := tx.CreateBucketIfNotExists(ix.Cfg.Key)
	if err != nil {
		return nndberr.Wrap("Index.Save", err)
	}

	if oldOK {
		if ix.Cfg.Dupsort {
			composite := encodeComposite(oldKey, id)
			if b.Get(composite) == nil {
				return nndberr.ErrReindexMismatch
			}
			if err := b.Delete(composite); err != nil {
				return nndberr.Wrap("Index.Save", err)
			}
		} else {
			existing := b.Get(oldKey)
			if existing == nil || !bytes.Equal(existing, id) {
				return nndberr.ErrReindexMismatch
			}
			if err := b.Delete(oldKey); err != nil {
				return nndberr.Wrap("Index.Save", err)
			}
		}
	}

	if newOK {
		if ix.Cfg.Dupsort {
			if err := b.Put(encodeComposite(newKey, id), id); err != nil {
				return nndberr.Wrap("Index.Save", err)
			}
		} else if err := b.Put(newKey, id); err != nil {
			return nndberr.Wrap("Index.Save", err)
		}
	}
	return nil
}

// Get returns the first id whose key equals key_fn(doc).
func (ix *Index) Get(tx *kvengine.Tx, doc document.Document) ([]byte, bool, error) {
	key, ok := ix.Tmpl.Eval(doc)
	if !ok {
		return nil, false, nil
	}
	b := ix.bucket(tx)
	if b == nil {
		return nil, false, nil
	}
	if !ix.Cfg.Dupsort {
		id := b.Get(key)
		if id == nil {
			return nil, false, nil
		}
		return append([]byte(nil), id...), true, nil
	}
	c := b.Cursor()
	k, v := c.Seek(encodeComposite(key, nil))
	if k == nil {
		return nil, false, nil
	}
	gotKey, _, ok := decodeComposite(k)
	if !ok || !bytes.Equal(gotKey, key) {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Each calls fn with every id whose key equals key_fn(doc), in id order
// under dupsort. Stops on the first error fn returns.
func (ix *Index) Each(tx *kvengine.Tx, doc document.Document, fn func(id []byte) error) error {
	key, ok := ix.Tmpl.Eval(doc)
	if !ok {
		return nil
	}
	b := ix.bucket(tx)
	if b == nil {
		return nil
	}
	if !ix.Cfg.Dupsort {
		id := b.Get(key)
		if id == nil {
			return nil
		}
		return fn(id)
	}
	c := b.Cursor()
	for k, v := c.Seek(encodeComposite(key, nil)); k != nil; k, v = c.Next() {
		gotKey, _, ok := decodeComposite(k)
		if !ok || !bytes.Equal(gotKey, key) {
			break
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether key equals key_fn(doc) bytewise.
func (ix *Index) Match(key []byte, doc document.Document) bool {
	got, ok := ix.Tmpl.Eval(doc)
	if !ok {
		return false
	}
	return bytes.Equal(got, key)
}

// Count returns the number of entries in the index.
func (ix *Index) Count(tx *kvengine.Tx) int {
	b := ix.bucket(tx)
	if b == nil {
		return 0
	}
	return b.Count()
}

// Drop deletes the index's bucket and every entry in it.
func (ix *Index) Drop(tx *kvengine.Tx) error {
	return nndberr.Wrap("Index.Drop", tx.DeleteBucket(ix.Cfg.Key))
}

// Empty clears all entries but keeps the bucket.
func (ix *Index) Empty(tx *kvengine.Tx) error {
	if err := tx.DeleteBucket(ix.Cfg.Key); err != nil {
		return nndberr.Wrap("Index.Empty", err)
	}
	return ix.Open(tx)
}

// Entry is one physical (derivedKey, id) pair, used by range/seek iteration
// and by Distinct.
type Entry struct {
	Key []byte
	ID  []byte
}

// decode splits a physical cursor key/value pair back into an Entry,
// accounting for dupsort's composite encoding.
func (ix *Index) decode(k, v []byte) (Entry, bool) {
	if !ix.Cfg.Dupsort {
		return Entry{Key: k, ID: v}, true
	}
	key, id, ok := decodeComposite(k)
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: key, ID: id}, true
}

// Seek positions a fresh cursor at the first physical entry with
// derivedKey >= key_fn(lower), or at the first entry overall if lower is
// nil (spec section 4.3, range_start).
func (ix *Index) Seek(tx *kvengine.Tx, lower document.Document) (*Walker, error) {
	b := ix.bucket(tx)
	if b == nil {
		if err := ix.Open(tx); err != nil {
			return nil, err
		}
		b = ix.bucket(tx)
	}
	c := b.Cursor()
	w := &Walker{ix: ix, c: c}
	if lower == nil {
		w.k, w.v = c.First()
		return w, nil
	}
	key, ok := ix.Tmpl.Eval(lower)
	if !ok {
		w.k, w.v = c.First()
		return w, nil
	}
	if ix.Cfg.Dupsort {
		w.k, w.v = c.Seek(encodeComposite(key, nil))
	} else {
		w.k, w.v = c.Seek(key)
	}
	return w, nil
}

// Walker is a forward cursor over an index's physical entries.
type Walker struct {
	ix *Index
	c  *kvengine.Cursor
	k  []byte
	v  []byte
}

// Valid reports whether the walker is positioned at an entry.
func (w *Walker) Valid() bool { return w.k != nil }

// Entry decodes the current physical position.
func (w *Walker) Entry() (Entry, bool) {
	if w.k == nil {
		return Entry{}, false
	}
	return w.ix.decode(w.k, w.v)
}

// Next advances the walker.
func (w *Walker) Next() {
	w.k, w.v = w.c.Next()
}

// Distinct returns, for every distinct derived key currently in the index,
// the number of documents sharing it. This is the core operation behind
// the CLI's "unique index keys with duplicate counts" surface (spec
// section 6) and the original source's equivalent helper.
func (ix *Index) Distinct(tx *kvengine.Tx) ([]DistinctKey, error) {
	b := ix.bucket(tx)
	if b == nil {
		return nil, nil
	}
	var out []DistinctKey
	c := b.Cursor()
	var cur []byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		e, ok := ix.decode(k, nil)
		if !ok {
			continue
		}
		if cur == nil || !bytes.Equal(cur, e.Key) {
			cur = append([]byte(nil), e.Key...)
			out = append(out, DistinctKey{Key: cur, Count: 0})
		}
		out[len(out)-1].Count++
	}
	return out, nil
}

// DistinctKey is one row of Index.Distinct's result.
type DistinctKey struct {
	Key   []byte
	Count int
}
