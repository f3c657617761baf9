// Package nndb is the top-level database façade (spec component C8): it
// opens the environment, maintains the table cache, and exposes the
// handful of whole-environment operations (tables, tables_all, exists,
// drop, restructure) that don't belong to any single table.
package nndb

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/oddjobz/nndb/binlog"
	"github.com/oddjobz/nndb/config"
	"github.com/oddjobz/nndb/document"
	"github.com/oddjobz/nndb/kvengine"
	"github.com/oddjobz/nndb/nndberr"
	"github.com/oddjobz/nndb/replica"
	"github.com/oddjobz/nndb/table"
	"github.com/oddjobz/nndb/txn"
)

func isReservedName(name string) bool {
	if name == "" {
		return true
	}
	return name[0] == '_' || name[0] == '~'
}

// Database is an opened environment plus its table cache (spec section
// 4.8). The zero value is not usable; construct with Open.
type Database struct {
	env    *kvengine.Env
	cfg    kvengine.Config
	logger *log.Logger

	mu     sync.Mutex
	tables map[string]*table.Table
}

// options accumulates functional-option state for Open, the teacher's
// internal/config layering pattern (on-disk defaults, then call-site
// overrides) applied to process construction instead of CLI flags.
type options struct {
	cfg        kvengine.Config
	cfgIsUnset bool
	logger     *log.Logger
	binlog     bool
}

// Option configures Open.
type Option func(*options)

// WithMapSize overrides the environment's initial mmap size, in bytes.
func WithMapSize(n int64) Option {
	return func(o *options) { o.cfg.MapSize = n }
}

// WithMaxDBs sets the configured maximum number of named sub-databases.
// The value is stored in the config only; nothing enforces it.
func WithMaxDBs(n uint32) Option {
	return func(o *options) { o.cfg.MaxDBs = n }
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBinlog enables the binary log immediately after Open.
func WithBinlog(enabled bool) Option {
	return func(o *options) { o.binlog = enabled }
}

// Open opens (creating if necessary) the environment at dir, applying
// dir/nndb.yaml if present and then any functional options, in that order
// (spec section 4.8's configuration defaults, layered the way the teacher
// layers config.yaml under command-line flags).
func Open(dir string, opts ...Option) (*Database, error) {
	fileCfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	o := &options{
		cfg:    fileCfg.Resolve(),
		logger: log.New(os.Stderr, "nndb: ", log.LstdFlags),
		binlog: fileCfg.BinlogOn,
	}
	for _, opt := range opts {
		opt(o)
	}

	env, err := kvengine.Open(dir, o.cfg)
	if err != nil {
		return nil, err
	}

	db := &Database{
		env:    env,
		cfg:    o.cfg,
		logger: o.logger,
		tables: map[string]*table.Table{},
	}

	if o.binlog {
		if err := db.EnableBinlog(); err != nil {
			_ = env.Close()
			return nil, err
		}
	}

	db.logger.Printf("opened %s", env.Path())
	return db, nil
}

// Close releases the environment.
func (db *Database) Close() error {
	db.logger.Printf("closed %s", db.env.Path())
	return db.env.Close()
}

// Path returns the on-disk data file path.
func (db *Database) Path() string { return db.env.Path() }

// Begin implements table.Opener, letting Table methods open their own
// transactions without this package and the table package import-cycling.
func (db *Database) Begin(write bool) (*txn.Transaction, error) {
	kv, err := db.env.Begin(write)
	if err != nil {
		return nil, err
	}
	return txn.New(kv, false), nil
}

// Table returns a handle to name, loading its index catalog on first
// access and caching the handle for subsequent calls. name must not begin
// with '_' or '~' (spec section 3, invariant 2).
func (db *Database) Table(name string) (*table.Table, error) {
	if isReservedName(name) {
		return nil, fmt.Errorf("nndb: table %q: %w", name, nndberr.ErrReservedName)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.tables[name]; ok {
		return t, nil
	}

	tx, err := db.env.Begin(false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	t := table.Open(name, db)
	if err := t.LoadIndexesIn(tx); err != nil {
		return nil, err
	}
	db.tables[name] = t
	return t, nil
}

// Tables lists user tables: every top-level sub-database whose name does
// not begin with '_' or '~' (spec section 4.8).
func (db *Database) Tables() ([]string, error) {
	all, err := db.TablesAll()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, name := range all {
		if !isReservedName(name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// TablesAll lists every sub-database in the environment, reserved or not.
func (db *Database) TablesAll() ([]string, error) {
	tx, err := db.env.Begin(false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	names := tx.BucketNames()
	sort.Strings(names)
	return names, nil
}

// Exists reports whether name names any existing sub-database, reserved or
// user-facing.
func (db *Database) Exists(name string) (bool, error) {
	tx, err := db.env.Begin(false)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()
	return tx.Bucket(name) != nil, nil
}

// Drop removes a user table entirely: its primary bucket, every index, and
// its catalog entries.
func (db *Database) Drop(name string) error {
	t, err := db.Table(name)
	if err != nil {
		return err
	}
	if err := t.Drop(); err != nil {
		return err
	}
	db.mu.Lock()
	delete(db.tables, name)
	db.mu.Unlock()
	db.logger.Printf("dropped table %s", name)
	return nil
}

// Restructure compacts name: every live document is copied to a scratch
// table, the original is emptied, the documents are copied back, and the
// scratch table is dropped — all in one transaction (spec section 4.8).
// Each copy strips the document's old _id first, so AppendIn mints a fresh
// one; Restructure reassigns identifiers but preserves indexes (GLOSSARY),
// and indexes are rebuilt incrementally as documents are re-appended rather
// than round-tripped through the catalog.
func (db *Database) Restructure(name string) error {
	if isReservedName(name) {
		return fmt.Errorf("nndb: restructure %q: %w", name, nndberr.ErrReservedName)
	}
	src, err := db.Table(name)
	if err != nil {
		return err
	}

	scratchName := "~" + name
	tx, err := db.Begin(true)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Abort() }()

	scratch := table.Open(scratchName, db)

	if err := copyAll(tx, src, scratch); err != nil {
		return err
	}
	if err := src.EmptyIn(tx); err != nil {
		return err
	}
	if err := copyAll(tx, scratch, src); err != nil {
		return err
	}
	if err := scratch.DropIn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Printf("restructured table %s", name)
	return nil
}

func copyAll(tx *txn.Transaction, from, to *table.Table) error {
	it, err := from.RangeIn(tx, "", nil, nil, true)
	if err != nil {
		return err
	}
	for {
		doc, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := to.AppendIn(tx, doc.WithoutID()); err != nil {
			return err
		}
	}
}

// EnableBinlog turns on the binary log for every subsequent write
// transaction.
func (db *Database) EnableBinlog() error {
	tx, err := db.env.Begin(true)
	if err != nil {
		return err
	}
	if err := binlog.Enable(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	db.logger.Printf("binary log enabled")
	return tx.Commit()
}

// DisableBinlog turns off the binary log, dropping its two reserved
// buckets.
func (db *Database) DisableBinlog() error {
	tx, err := db.env.Begin(true)
	if err != nil {
		return err
	}
	if err := binlog.Disable(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	db.logger.Printf("binary log disabled")
	return tx.Commit()
}

// Replicate implements replica.Source by streaming every binary log batch
// after consumer.From() to consumer, in sequence order.
func (db *Database) Replicate(consumer replica.Consumer) error {
	from, err := consumer.From()
	if err != nil {
		return err
	}
	tx, err := db.env.Begin(false)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	return binlog.Each(tx, func(seq uint64, batch binlog.Batch) error {
		if seq <= from {
			return nil
		}
		return consumer.Apply(replica.Batch{Seq: seq, Txn: batch.Txn})
	})
}

// DocumentSize returns a document's serialized payload size in bytes, the
// same encoding Table.Append/Save write to the primary bucket. Used by the
// CLI's record-size-distribution analysis (spec section 6); exposed here
// rather than in cmd/nndb because it is a property of the stored encoding,
// not of the command-line surface.
func DocumentSize(doc document.Document) (int, error) {
	data, err := json.Marshal(doc.WithoutID())
	if err != nil {
		return 0, nndberr.Wrap("DocumentSize", err)
	}
	return len(data), nil
}
