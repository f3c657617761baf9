// Package table implements the primary document collection (spec component
// C4): a primary bucket holding id -> serialized document, an index
// catalog, and the co-mutation invariants tying primary writes to their
// indexes inside one atomic transaction.
//
// Every mutating and reading operation except Upsert comes in two entry points, per the
// "optional-transaction decorator -> dual-entry API" design note: an *In
// method that takes a caller-supplied *txn.Transaction (for composing
// multi-table operations under one atomic unit), and a convenience method
// of the same name without the suffix that opens, and fully owns, its own
// transaction.
package table

import (
	"bytes"

	json "github.com/goccy/go-json"

	"github.com/oddjobz/nndb/catalog"
	"github.com/oddjobz/nndb/document"
	"github.com/oddjobz/nndb/idgen"
	"github.com/oddjobz/nndb/index"
	"github.com/oddjobz/nndb/kvengine"
	"github.com/oddjobz/nndb/nndberr"
	"github.com/oddjobz/nndb/query"
	"github.com/oddjobz/nndb/template"
	"github.com/oddjobz/nndb/txn"
)

// Opener is the minimal capability a Table needs from its owning Database:
// the ability to begin a transaction. Table depends only on this interface,
// not on the database package, so there is no import cycle between the two.
type Opener interface {
	Begin(write bool) (*txn.Transaction, error)
}

// Table is a named collection of schemaless documents.
type Table struct {
	Name    string
	opener  Opener
	indexes map[string]*index.Index
}

// Open returns a handle to table name. It does not touch storage; callers
// should call LoadIndexesIn once with a read transaction before relying on
// the index cache (Database.Table does this).
func Open(name string, opener Opener) *Table {
	return &Table{Name: name, opener: opener, indexes: map[string]*index.Index{}}
}

// LoadIndexesIn (re)populates the table's index cache from the metadata
// catalog.
func (t *Table) LoadIndexesIn(tx *kvengine.Tx) error {
	names, err := catalog.List(tx, t.Name)
	if err != nil {
		return err
	}
	fresh := map[string]*index.Index{}
	for _, name := range names {
		entry, ok, err := catalog.Get(tx, t.Name, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		tmpl, err := template.Compile(entry.Func)
		if err != nil {
			return nndberr.Wrap("LoadIndexesIn", err)
		}
		ix := index.New(t.Name, name, tmpl, entry.Conf.Dupsort)
		fresh[name] = ix
	}
	t.indexes = fresh
	return nil
}

// Indexes returns the names of the table's indexes.
func (t *Table) Indexes() []string {
	names := make([]string, 0, len(t.indexes))
	for n := range t.indexes {
		names = append(names, n)
	}
	return names
}

func (t *Table) indexList() []*index.Index {
	out := make([]*index.Index, 0, len(t.indexes))
	for _, ix := range t.indexes {
		out = append(out, ix)
	}
	return out
}

func (t *Table) bucket(tx *kvengine.Tx) *kvengine.Bucket {
	return tx.Bucket(t.Name)
}

func (t *Table) withAutoWrite(fn func(tx *txn.Transaction) error) error {
	tx, err := t.opener.Begin(true)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Abort()
		return err
	}
	return tx.Commit()
}

func (t *Table) withAutoRead(fn func(tx *txn.Transaction) error) error {
	tx, err := t.opener.Begin(false)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Abort() }()
	return fn(tx)
}

func decodeDoc(id, data []byte) (document.Document, error) {
	doc := document.Document{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nndberr.Wrap("decodeDoc", err)
		}
	}
	doc[document.IDAttr] = string(id)
	return doc, nil
}

// GetIn returns the document stored under id, if any.
func (t *Table) GetIn(tx *kvengine.Tx, id []byte) (document.Document, bool, error) {
	b := t.bucket(tx)
	if b == nil {
		return nil, false, nil
	}
	data := b.Get(id)
	if data == nil {
		return nil, false, nil
	}
	doc, err := decodeDoc(id, data)
	return doc, err == nil, err
}

// Get is the auto-transaction convenience form of GetIn.
func (t *Table) Get(id []byte) (document.Document, bool, error) {
	var doc document.Document
	var found bool
	err := t.withAutoRead(func(tx *txn.Transaction) error {
		var err error
		doc, found, err = t.GetIn(tx.KV, id)
		return err
	})
	return doc, found, err
}

// CountIn returns the number of live documents in the table.
func (t *Table) CountIn(tx *kvengine.Tx) int {
	b := t.bucket(tx)
	if b == nil {
		return 0
	}
	return b.Count()
}

// Count is the auto-transaction convenience form of CountIn.
func (t *Table) Count() (int, error) {
	var n int
	err := t.withAutoRead(func(tx *txn.Transaction) error {
		n = t.CountIn(tx.KV)
		return nil
	})
	return n, err
}

// LastIn returns the document with the greatest id in natural order.
func (t *Table) LastIn(tx *kvengine.Tx) (document.Document, bool, error) {
	b := t.bucket(tx)
	if b == nil {
		return nil, false, nil
	}
	k, v := b.Cursor().Last()
	if k == nil {
		return nil, false, nil
	}
	doc, err := decodeDoc(k, v)
	return doc, err == nil, err
}

// Last is the auto-transaction convenience form of LastIn.
func (t *Table) Last() (document.Document, bool, error) {
	var doc document.Document
	var found bool
	err := t.withAutoRead(func(tx *txn.Transaction) error {
		var err error
		doc, found, err = t.LastIn(tx.KV)
		return err
	})
	return doc, found, err
}

// AppendIn assigns a fresh identifier to doc (unless it already carries
// one), writes the primary record, and updates every index, all within tx.
func (t *Table) AppendIn(tr *txn.Transaction, doc document.Document) ([]byte, error) {
	var id []byte
	if raw, ok := doc.ID(); ok {
		coerced, err := document.CoerceID(raw)
		if err != nil {
			return nil, err
		}
		id = coerced
	} else {
		id = idgen.New()
	}

	payload, err := json.Marshal(doc.WithoutID())
	if err != nil {
		return nil, nndberr.Wrap("Table.Append", err)
	}

	b, err := tr.KV.CreateBucketIfNotExists(t.Name)
	if err != nil {
		return nil, nndberr.Wrap("Table.Append", err)
	}
	if err := b.Put(id, payload); err != nil {
		return nil, nndberr.Wrap("Table.Append", err)
	}

	full := doc.Clone()
	full[document.IDAttr] = string(id)
	for _, ix := range t.indexList() {
		if _, err := ix.Put(tr.KV, id, full); err != nil {
			return nil, nndberr.Wrap("Table.Append", err)
		}
	}

	tr.Record(txn.Descriptor{Cmd: txn.CmdAdd, Tab: t.Name, Doc: full})
	return id, nil
}

// Append is the auto-transaction convenience form of AppendIn.
func (t *Table) Append(doc document.Document) ([]byte, error) {
	var id []byte
	err := t.withAutoWrite(func(tx *txn.Transaction) error {
		var err error
		id, err = t.AppendIn(tx, doc)
		return err
	})
	return id, err
}

// DeleteIn removes each of ids from the primary bucket and every index.
// Deleting a missing id is a fatal error within the enclosing write (spec
// section 4.4): a caller-visible NotFound, not a silent no-op.
func (t *Table) DeleteIn(tr *txn.Transaction, ids ...[]byte) error {
	b := t.bucket(tr.KV)
	if b == nil {
		return nndberr.ErrNotFound
	}
	for _, id := range ids {
		data := b.Get(id)
		if data == nil {
			return nndberr.ErrNotFound
		}
		oldDoc, err := decodeDoc(id, data)
		if err != nil {
			return err
		}
		if err := b.Delete(id); err != nil {
			return nndberr.Wrap("Table.Delete", err)
		}
		for _, ix := range t.indexList() {
			if err := ix.Delete(tr.KV, id, oldDoc); err != nil {
				return nndberr.Wrap("Table.Delete", err)
			}
		}
	}
	tr.Record(txn.Descriptor{Cmd: txn.CmdDel, Tab: t.Name, Keys: ids})
	return nil
}

// Delete is the auto-transaction convenience form of DeleteIn.
func (t *Table) Delete(ids ...[]byte) error {
	return t.withAutoWrite(func(tx *txn.Transaction) error {
		return t.DeleteIn(tx, ids...)
	})
}

// SaveIn writes doc (which must carry _id) over its previous revision and
// reindexes every index from the old to the new document. Returns the
// structural delta between the two revisions.
func (t *Table) SaveIn(tr *txn.Transaction, doc document.Document) (document.Diff, error) {
	rawID, ok := doc.ID()
	if !ok {
		return nil, nndberr.ErrNoKey
	}
	id, err := document.CoerceID(rawID)
	if err != nil {
		return nil, err
	}

	b, err := tr.KV.CreateBucketIfNotExists(t.Name)
	if err != nil {
		return nil, nndberr.Wrap("Table.Save", err)
	}
	oldData := b.Get(id)
	if oldData == nil {
		return nil, nndberr.ErrNotFound
	}
	oldDoc, err := decodeDoc(id, oldData)
	if err != nil {
		return nil, err
	}

	newPayload, err := json.Marshal(doc.WithoutID())
	if err != nil {
		return nil, nndberr.Wrap("Table.Save", err)
	}
	if err := b.Put(id, newPayload); err != nil {
		return nil, nndberr.Wrap("Table.Save", err)
	}

	newDoc := doc.Clone()
	newDoc[document.IDAttr] = string(id)
	for _, ix := range t.indexList() {
		if err := ix.Save(tr.KV, id, oldDoc, newDoc); err != nil {
			return nil, err
		}
	}

	diff := document.Compare(oldDoc, newDoc)
	tr.Record(txn.Descriptor{Cmd: txn.CmdUpd, Tab: t.Name, Key: id, Diff: diff})
	return diff, nil
}

// Save is the auto-transaction convenience form of SaveIn.
func (t *Table) Save(doc document.Document) (document.Diff, error) {
	var diff document.Diff
	err := t.withAutoWrite(func(tx *txn.Transaction) error {
		var err error
		diff, err = t.SaveIn(tx, doc)
		return err
	})
	return diff, err
}

// Upsert dispatches to Append or Save depending on whether doc already
// carries an _id, matching the original source's single upsert-like entry
// point (SPEC_FULL.md section 4.9) without blurring the two documented Go
// entry points it wraps. It has no *In form: Append and Save each open and
// commit their own transaction.
func (t *Table) Upsert(doc document.Document) (id []byte, created bool, err error) {
	if _, ok := doc.ID(); !ok {
		id, err = t.Append(doc)
		return id, true, err
	}
	rawID, _ := doc.ID()
	id, err = document.CoerceID(rawID)
	if err != nil {
		return nil, false, err
	}
	_, err = t.Save(doc)
	return id, false, err
}

// EmptyIn clears every index and the primary bucket, keeping all catalog
// entries in place.
func (t *Table) EmptyIn(tr *txn.Transaction) error {
	for _, ix := range t.indexList() {
		if err := ix.Empty(tr.KV); err != nil {
			return err
		}
	}
	if err := tr.KV.DeleteBucket(t.Name); err != nil {
		return nndberr.Wrap("Table.Empty", err)
	}
	if _, err := tr.KV.CreateBucketIfNotExists(t.Name); err != nil {
		return nndberr.Wrap("Table.Empty", err)
	}
	tr.Record(txn.Descriptor{Cmd: txn.CmdEmp, Tab: t.Name})
	return nil
}

// Empty is the auto-transaction convenience form of EmptyIn.
func (t *Table) Empty() error {
	return t.withAutoWrite(func(tx *txn.Transaction) error {
		return t.EmptyIn(tx)
	})
}

// DropIn removes every index, the primary bucket, and the table's catalog
// entries, all atomically.
func (t *Table) DropIn(tr *txn.Transaction) error {
	for _, ix := range t.indexList() {
		if err := ix.Drop(tr.KV); err != nil {
			return err
		}
	}
	if err := tr.KV.DeleteBucket(t.Name); err != nil {
		return nndberr.Wrap("Table.Drop", err)
	}
	if err := catalog.DeleteTable(tr.KV, t.Name); err != nil {
		return err
	}
	t.indexes = map[string]*index.Index{}
	tr.Record(txn.Descriptor{Cmd: txn.CmdDrp, Tab: t.Name})
	return nil
}

// Drop is the auto-transaction convenience form of DropIn.
func (t *Table) Drop() error {
	return t.withAutoWrite(func(tx *txn.Transaction) error {
		return t.DropIn(tx)
	})
}

// IndexIn declares a new secondary index: compiles tmplSrc, persists its
// catalog entry, opens its bucket, and reindexes every existing document,
// all within tr.
func (t *Table) IndexIn(tr *txn.Transaction, name, tmplSrc string, duplicates bool) (*index.Index, error) {
	if _, ok := t.indexes[name]; ok {
		return nil, nndberr.ErrIndexExists
	}
	tmpl, err := template.Compile(tmplSrc)
	if err != nil {
		return nil, err
	}
	ix := index.New(t.Name, name, tmpl, duplicates)
	if err := ix.Open(tr.KV); err != nil {
		return nil, err
	}
	if err := catalog.Put(tr.KV, t.Name, name, catalog.Entry{Conf: catalog.Conf(ix.Cfg), Func: tmplSrc}); err != nil {
		return nil, err
	}
	if err := t.reindexOneIn(tr.KV, ix); err != nil {
		return nil, err
	}
	t.indexes[name] = ix
	tr.Record(txn.Descriptor{Cmd: txn.CmdIdx, Tab: t.Name, Idx: name, Fun: tmplSrc, Dup: duplicates})
	return ix, nil
}

// Index is the auto-transaction convenience form of IndexIn.
func (t *Table) Index(name, tmplSrc string, duplicates bool) (*index.Index, error) {
	var ix *index.Index
	err := t.withAutoWrite(func(tx *txn.Transaction) error {
		var err error
		ix, err = t.IndexIn(tx, name, tmplSrc, duplicates)
		return err
	})
	return ix, err
}

// EnsureIn declares the index idempotently: if it exists and force is set,
// it is dropped and recreated; if it exists and force is not set, the
// existing index is returned unchanged.
func (t *Table) EnsureIn(tr *txn.Transaction, name, tmplSrc string, duplicates, force bool) (*index.Index, error) {
	existing, ok := t.indexes[name]
	if ok && !force {
		return existing, nil
	}
	if ok {
		if err := t.DropIndexIn(tr, name); err != nil {
			return nil, err
		}
	}
	return t.IndexIn(tr, name, tmplSrc, duplicates)
}

// Ensure is the auto-transaction convenience form of EnsureIn.
func (t *Table) Ensure(name, tmplSrc string, duplicates, force bool) (*index.Index, error) {
	var ix *index.Index
	err := t.withAutoWrite(func(tx *txn.Transaction) error {
		var err error
		ix, err = t.EnsureIn(tx, name, tmplSrc, duplicates, force)
		return err
	})
	return ix, err
}

// DropIndexIn removes an index's bucket and its catalog entry.
func (t *Table) DropIndexIn(tr *txn.Transaction, name string) error {
	ix, ok := t.indexes[name]
	if !ok {
		return nndberr.ErrIndexMissing
	}
	if err := ix.Drop(tr.KV); err != nil {
		return err
	}
	if err := catalog.Delete(tr.KV, t.Name, name); err != nil {
		return err
	}
	delete(t.indexes, name)
	tr.Record(txn.Descriptor{Cmd: txn.CmdUix, Tab: t.Name, Idx: name})
	return nil
}

// DropIndex is the auto-transaction convenience form of DropIndexIn.
func (t *Table) DropIndex(name string) error {
	return t.withAutoWrite(func(tx *txn.Transaction) error {
		return t.DropIndexIn(tx, name)
	})
}

func (t *Table) reindexOneIn(tx *kvengine.Tx, ix *index.Index) error {
	b := t.bucket(tx)
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		doc, err := decodeDoc(k, v)
		if err != nil {
			return err
		}
		if _, err := ix.Put(tx, k, doc); err != nil {
			return err
		}
	}
	return nil
}

// ReindexIn empties and rebuilds every index from the primary bucket's
// current contents. Not itself logged as a binlog descriptor: the original
// per-document Index.Put effects a replay consumer would need are already
// implied by the table's "idx" declarations, and replaying every put would
// be needless log bloat for an operation that is, by definition, fully
// derivable from the primary data already in the log.
func (t *Table) ReindexIn(tr *txn.Transaction) error {
	for _, ix := range t.indexList() {
		if err := ix.Empty(tr.KV); err != nil {
			return err
		}
		if err := t.reindexOneIn(tr.KV, ix); err != nil {
			return err
		}
	}
	return nil
}

// Reindex is the auto-transaction convenience form of ReindexIn. ReindexIn
// records no descriptor, and Transaction.Commit treats an empty descriptor
// list as a rollback, so Reindex commits the underlying KV transaction
// directly.
func (t *Table) Reindex() error {
	tx, err := t.opener.Begin(true)
	if err != nil {
		return err
	}
	if err := t.ReindexIn(tx); err != nil {
		_ = tx.Abort()
		return err
	}
	return tx.KV.Commit()
}

// Iterator is a lazy, cursor-backed sequence of documents, per the
// "generator-based iteration -> explicit iterator" design note. When built
// by a convenience (non-*In) method, the iterator owns its read
// transaction and releases it on exhaustion or Close.
type Iterator struct {
	tx     *txn.Transaction
	ownTx  bool
	advance func() (document.Document, bool, error)
	closed bool
}

// Next returns the next document, or ok=false when the sequence (or any
// caller-supplied limit) is exhausted.
func (it *Iterator) Next() (document.Document, bool, error) {
	if it.closed {
		return nil, false, nil
	}
	doc, ok, err := it.advance()
	if !ok || err != nil {
		_ = it.Close()
	}
	return doc, ok, err
}

// Close releases the iterator's owned transaction, if any. Safe to call
// more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.ownTx {
		return it.tx.Abort()
	}
	return nil
}

// FindIn iterates idxName in key order (or the primary bucket in id order
// when idxName is empty), yielding documents that satisfy expr (nil means
// no filter), up to limit results (0 means unlimited).
func (t *Table) FindIn(tr *txn.Transaction, idxName string, expr query.Predicate, limit int) (*Iterator, error) {
	return t.findGeneric(tr, idxName, expr, limit)
}

func (t *Table) findGeneric(tr *txn.Transaction, idxName string, expr query.Predicate, limit int) (*Iterator, error) {
	yielded := 0
	withinLimit := func() bool { return limit <= 0 || yielded < limit }

	var advance func() (document.Document, bool, error)

	if idxName == "" {
		b := t.bucket(tr.KV)
		if b == nil {
			advance = func() (document.Document, bool, error) { return nil, false, nil }
		} else {
			c := b.Cursor()
			first := true
			advance = func() (document.Document, bool, error) {
				for withinLimit() {
					var k, v []byte
					if first {
						k, v = c.First()
						first = false
					} else {
						k, v = c.Next()
					}
					if k == nil {
						return nil, false, nil
					}
					doc, err := decodeDoc(k, v)
					if err != nil {
						return nil, false, err
					}
					if expr != nil && !expr(doc) {
						continue
					}
					yielded++
					return doc, true, nil
				}
				return nil, false, nil
			}
		}
	} else {
		ix, ok := t.indexes[idxName]
		if !ok {
			return nil, nndberr.ErrIndexMissing
		}
		w, err := ix.Seek(tr.KV, nil)
		if err != nil {
			return nil, err
		}
		advance = func() (document.Document, bool, error) {
			for withinLimit() {
				e, ok := w.Entry()
				if !ok {
					return nil, false, nil
				}
				w.Next()
				doc, ok2, err := t.GetIn(tr.KV, e.ID)
				if err != nil {
					return nil, false, err
				}
				if !ok2 {
					return nil, false, nndberr.ErrNotFound
				}
				if expr != nil && !expr(doc) {
					continue
				}
				yielded++
				return doc, true, nil
			}
			return nil, false, nil
		}
	}

	return &Iterator{tx: tr, advance: advance}, nil
}

// Find is the auto-transaction convenience form of FindIn.
func (t *Table) Find(idxName string, expr query.Predicate, limit int) (*Iterator, error) {
	tx, err := t.opener.Begin(false)
	if err != nil {
		return nil, err
	}
	it, err := t.findGeneric(tx, idxName, expr, limit)
	if err != nil {
		_ = tx.Abort()
		return nil, err
	}
	it.ownTx = true
	return it, nil
}

// SeekIn yields every document whose idxName key equals key_fn(keyDoc).
func (t *Table) SeekIn(tr *txn.Transaction, idxName string, keyDoc document.Document) (*Iterator, error) {
	ix, ok := t.indexes[idxName]
	if !ok {
		return nil, nndberr.ErrIndexMissing
	}
	key, defined := ix.Tmpl.Eval(keyDoc)
	w, err := ix.Seek(tr.KV, keyDoc)
	if err != nil {
		return nil, err
	}
	advance := func() (document.Document, bool, error) {
		if !defined {
			return nil, false, nil
		}
		e, ok := w.Entry()
		if !ok || !bytes.Equal(e.Key, key) {
			return nil, false, nil
		}
		w.Next()
		doc, ok2, err := t.GetIn(tr.KV, e.ID)
		if err != nil {
			return nil, false, err
		}
		if !ok2 {
			return nil, false, nndberr.ErrNotFound
		}
		return doc, true, nil
	}
	return &Iterator{tx: tr, advance: advance}, nil
}

// Seek is the auto-transaction convenience form of SeekIn.
func (t *Table) Seek(idxName string, keyDoc document.Document) (*Iterator, error) {
	tx, err := t.opener.Begin(false)
	if err != nil {
		return nil, err
	}
	it, err := t.SeekIn(tx, idxName, keyDoc)
	if err != nil {
		_ = tx.Abort()
		return nil, err
	}
	it.ownTx = true
	return it, nil
}

// SeekOneIn returns the first document whose idxName key equals
// key_fn(keyDoc), if any.
func (t *Table) SeekOneIn(tr *txn.Transaction, idxName string, keyDoc document.Document) (document.Document, bool, error) {
	it, err := t.SeekIn(tr, idxName, keyDoc)
	if err != nil {
		return nil, false, err
	}
	return it.Next()
}

// SeekOne is the auto-transaction convenience form of SeekOneIn.
func (t *Table) SeekOne(idxName string, keyDoc document.Document) (document.Document, bool, error) {
	it, err := t.Seek(idxName, keyDoc)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = it.Close() }()
	return it.Next()
}

// RangeIn yields documents whose key lies in [lower, upper] (inclusive) or
// (lower, upper) (exclusive), per spec section 4.4. When idxName is empty,
// lower/upper are interpreted as documents carrying only _id, and ordering
// is natural (primary id bytes); otherwise they are template documents
// evaluated through idxName's key function. A nil lower means "from the
// start"; a nil upper means "to the end".
func (t *Table) RangeIn(tr *txn.Transaction, idxName string, lower, upper document.Document, inclusive bool) (*Iterator, error) {
	if idxName == "" {
		return t.rangeNaturalIn(tr, lower, upper, inclusive)
	}
	ix, ok := t.indexes[idxName]
	if !ok {
		return nil, nndberr.ErrIndexMissing
	}

	var upperKey []byte
	haveUpper := false
	if upper != nil {
		if k, ok := ix.Tmpl.Eval(upper); ok {
			upperKey, haveUpper = k, true
		}
	}

	w, err := ix.Seek(tr.KV, lower)
	if err != nil {
		return nil, err
	}

	skippedLeadingEqual := inclusive // inclusive mode never needs to skip
	var lowerKey []byte
	haveLower := false
	if lower != nil {
		if k, ok := ix.Tmpl.Eval(lower); ok {
			lowerKey, haveLower = k, true
		}
	}

	advance := func() (document.Document, bool, error) {
		for {
			e, ok := w.Entry()
			if !ok {
				return nil, false, nil
			}
			if !inclusive && haveLower && !skippedLeadingEqual && bytes.Equal(e.Key, lowerKey) {
				w.Next()
				continue
			}
			skippedLeadingEqual = true
			if haveUpper {
				cmp := bytes.Compare(e.Key, upperKey)
				if inclusive && cmp > 0 {
					return nil, false, nil
				}
				if !inclusive && cmp >= 0 {
					return nil, false, nil
				}
			}
			w.Next()
			doc, ok2, err := t.GetIn(tr.KV, e.ID)
			if err != nil {
				return nil, false, err
			}
			if !ok2 {
				return nil, false, nndberr.ErrNotFound
			}
			return doc, true, nil
		}
	}
	return &Iterator{tx: tr, advance: advance}, nil
}

func (t *Table) rangeNaturalIn(tr *txn.Transaction, lower, upper document.Document, inclusive bool) (*Iterator, error) {
	b := t.bucket(tr.KV)
	if b == nil {
		return &Iterator{tx: tr, advance: func() (document.Document, bool, error) { return nil, false, nil }}, nil
	}
	c := b.Cursor()

	var lowerID, upperID []byte
	if lower != nil {
		if raw, ok := lower.ID(); ok {
			lowerID, _ = document.CoerceID(raw)
		}
	}
	if upper != nil {
		if raw, ok := upper.ID(); ok {
			upperID, _ = document.CoerceID(raw)
		}
	}

	var k, v []byte
	if lowerID != nil {
		k, v = c.Seek(lowerID)
	} else {
		k, v = c.First()
	}
	skippedLeadingEqual := inclusive

	advance := func() (document.Document, bool, error) {
		for {
			if k == nil {
				return nil, false, nil
			}
			if !inclusive && lowerID != nil && !skippedLeadingEqual && bytes.Equal(k, lowerID) {
				k, v = c.Next()
				continue
			}
			skippedLeadingEqual = true
			if upperID != nil {
				cmp := bytes.Compare(k, upperID)
				if inclusive && cmp > 0 {
					return nil, false, nil
				}
				if !inclusive && cmp >= 0 {
					return nil, false, nil
				}
			}
			doc, err := decodeDoc(k, v)
			k, v = c.Next()
			return doc, err == nil, err
		}
	}
	return &Iterator{tx: tr, advance: advance}, nil
}

// Range is the auto-transaction convenience form of RangeIn.
func (t *Table) Range(idxName string, lower, upper document.Document, inclusive bool) (*Iterator, error) {
	tx, err := t.opener.Begin(false)
	if err != nil {
		return nil, err
	}
	it, err := t.RangeIn(tx, idxName, lower, upper, inclusive)
	if err != nil {
		_ = tx.Abort()
		return nil, err
	}
	it.ownTx = true
	return it, nil
}

// IndexByName returns the named index, if loaded.
func (t *Table) IndexByName(name string) (*index.Index, bool) {
	ix, ok := t.indexes[name]
	return ix, ok
}
