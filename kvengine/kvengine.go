// Package kvengine is the uniform facade (spec component C1) over the
// embedded, memory-mapped, ordered key-value engine everything else in this
// module is built on: go.etcd.io/bbolt.
//
// bbolt gives single-writer/multi-reader MVCC, named buckets standing in
// for spec's "named sub-databases", and a cursor with First/Last/Next/Prev/
// Seek — the same shape spec section 4.1 asks C1 to present. bbolt has no
// native dup-sort bucket mode; that emulation lives one layer up, in the
// index package, so this facade stays a thin, honest wrapper rather than a
// second storage engine in disguise.
package kvengine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/oddjobz/nndb/nndberr"
)

// Config mirrors the option surface spec section 4.1 names. Not every knob
// has a literal bbolt equivalent; where one is missing this is documented
// rather than silently dropped.
type Config struct {
	MapSize  int64 // InitialMmapSize
	Subdir   bool  // always true for bbolt's single-file layout; kept for interface parity
	Metasync bool  // no bbolt equivalent; bbolt always syncs its meta pages on commit
	Sync     bool  // inverse of bbolt's NoSync
	Lock     bool  // bbolt always takes an advisory flock; false only disables the open timeout
	MaxDBs   uint32 // no bbolt equivalent (accepted, ignored; no sub-database limit is enforced)
	Writemap bool   // no bbolt equivalent (accepted, ignored)
	MapAsync bool   // no bbolt equivalent (accepted, ignored)
}

// DefaultConfig matches the defaults spec section 4.8 assigns to Database.
func DefaultConfig() Config {
	return Config{
		MapSize:  2 << 30, // 2 GiB
		Subdir:   true,
		Metasync: false,
		Sync:     true,
		Lock:     true,
		MaxDBs:   64,
		Writemap: true,
		MapAsync: true,
	}
}

// Env is an opened environment: one bbolt file plus the config it was
// opened with.
type Env struct {
	db  *bolt.DB
	cfg Config
}

// Open creates dir if needed and opens (or creates) the environment's data
// file inside it, preserving spec's directory-based external contract even
// though bbolt itself is a single file.
func Open(dir string, cfg Config) (*Env, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nndberr.Wrap("kvengine.Open", err)
	}
	opts := &bolt.Options{
		Timeout:         0,
		NoSync:          !cfg.Sync,
		InitialMmapSize: int(cfg.MapSize),
	}
	if cfg.Lock {
		opts.Timeout = 5 * time.Second
	}
	db, err := bolt.Open(filepath.Join(dir, "data.db"), 0o644, opts)
	if err != nil {
		return nil, nndberr.Wrap("kvengine.Open", err)
	}
	return &Env{db: db, cfg: cfg}, nil
}

// Close releases the underlying mmap and advisory lock.
func (e *Env) Close() error {
	return nndberr.Wrap("kvengine.Close", e.db.Close())
}

// Path returns the on-disk data file path.
func (e *Env) Path() string {
	return e.db.Path()
}

// Begin starts a read or write transaction. Only one write transaction may
// be open at a time (spec section 5); bbolt serializes writers internally.
func (e *Env) Begin(write bool) (*Tx, error) {
	tx, err := e.db.Begin(write)
	if err != nil {
		return nil, nndberr.Wrap("kvengine.Begin", err)
	}
	return &Tx{tx: tx, write: write}, nil
}

// Tx wraps a bbolt transaction. It must not be used after Commit or
// Rollback, and its Buckets/Cursors must not outlive it (spec section 5).
type Tx struct {
	tx    *bolt.Tx
	write bool
}

// Writable reports whether this is a write transaction.
func (t *Tx) Writable() bool { return t.write }

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return nndberr.Wrap("Tx.Commit", t.tx.Commit())
}

// Rollback aborts the transaction, discarding every write made through it.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil {
		return nndberr.Wrap("Tx.Rollback", err)
	}
	return nil
}

// Bucket returns the named bucket, or nil if it does not exist.
func (t *Tx) Bucket(name string) *Bucket {
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil
	}
	return &Bucket{b: b}
}

// CreateBucketIfNotExists creates name if absent and returns it.
func (t *Tx) CreateBucketIfNotExists(name string) (*Bucket, error) {
	b, err := t.tx.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return nil, nndberr.Wrap("CreateBucketIfNotExists", err)
	}
	return &Bucket{b: b}, nil
}

// DeleteBucket removes name and everything in it. It is not an error for
// name to already be absent.
func (t *Tx) DeleteBucket(name string) error {
	err := t.tx.DeleteBucket([]byte(name))
	if err != nil && err != bolt.ErrBucketNotFound {
		return nndberr.Wrap("DeleteBucket", err)
	}
	return nil
}

// BucketNames lists every top-level bucket in the environment, the
// equivalent of spec's Database.tables_all.
func (t *Tx) BucketNames() []string {
	var names []string
	_ = t.tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
		names = append(names, string(name))
		return nil
	})
	return names
}

// Bucket is a named sub-database.
type Bucket struct {
	b *bolt.Bucket
}

// Put writes k -> v. Returns ErrWriteFail if the underlying engine refuses
// the write (e.g. map full, read-only transaction).
func (b *Bucket) Put(k, v []byte) error {
	if err := b.b.Put(k, v); err != nil {
		return fmt.Errorf("%w: %v", nndberr.ErrWriteFail, err)
	}
	return nil
}

// Get returns the value for k, or nil if absent. The returned slice is only
// valid for the lifetime of the enclosing transaction.
func (b *Bucket) Get(k []byte) []byte {
	return b.b.Get(k)
}

// Delete removes k. It is not an error for k to be absent.
func (b *Bucket) Delete(k []byte) error {
	if err := b.b.Delete(k); err != nil {
		return fmt.Errorf("%w: %v", nndberr.ErrWriteFail, err)
	}
	return nil
}

// Count returns the number of direct key/value entries in the bucket. This
// walks the bucket's B-tree (bbolt exposes no O(1) counter), same cost the
// original LMDB-backed implementation pays for MDB_stat.
func (b *Bucket) Count() int {
	return b.b.Stats().KeyN
}

// Cursor returns a cursor over this bucket's entries in key order. The
// cursor is only valid for the lifetime of the enclosing transaction.
func (b *Bucket) Cursor() *Cursor {
	return &Cursor{c: b.b.Cursor()}
}

// Cursor mirrors the operation set spec section 4.1 requires of the
// underlying engine: first/last/next/prev/seek (set_range). next_dup and
// duplicate-sorted semantics are layered on top by the index package, which
// knows how composite keys are encoded.
type Cursor struct {
	c *bolt.Cursor
}

// First positions at the first entry.
func (c *Cursor) First() (k, v []byte) { return c.c.First() }

// Last positions at the last entry.
func (c *Cursor) Last() (k, v []byte) { return c.c.Last() }

// Next advances to the next entry.
func (c *Cursor) Next() (k, v []byte) { return c.c.Next() }

// Prev moves to the previous entry.
func (c *Cursor) Prev() (k, v []byte) { return c.c.Prev() }

// Seek positions at the first entry with key >= k (MDB's set_range).
func (c *Cursor) Seek(k []byte) (key, v []byte) { return c.c.Seek(k) }
