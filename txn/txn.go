// Package txn implements the user-facing Transaction (spec component C6): a
// scoped acquisition of a write (or read) transaction that records one
// mutation descriptor per invoked mutating call and, on clean exit with a
// non-empty descriptor list, appends them to the binary log before
// committing the underlying KV transaction.
package txn

import (
	json "github.com/goccy/go-json"

	"github.com/oddjobz/nndb/binlog"
	"github.com/oddjobz/nndb/document"
	"github.com/oddjobz/nndb/kvengine"
)

// Command is the one-letter-ish opcode spec section 4.6 defines for each
// kind of mutating call a Table method can make.
type Command string

// The eight commands spec section 4.6 enumerates.
const (
	CmdAdd Command = "add"
	CmdDel Command = "del"
	CmdUpd Command = "upd"
	CmdEmp Command = "emp"
	CmdIdx Command = "idx"
	CmdUix Command = "uix"
	CmdCre Command = "cre"
	CmdDrp Command = "drp"
)

// Descriptor is one recorded mutating call. Fields are command-specific and
// most are omitted on the wire when unused. Diff replaces the original
// source's undocumented "yyy" field name (spec section 9, Open Question 2:
// no replay-compatibility requirement was stated, so the clearer name wins).
type Descriptor struct {
	Cmd  Command        `json:"cmd"`
	Tab  string         `json:"tab"`
	Doc  document.Document `json:"doc,omitempty"`
	ID   []byte         `json:"id,omitempty"`
	Keys [][]byte       `json:"keys,omitempty"`
	Key  []byte         `json:"key,omitempty"`
	Diff document.Diff  `json:"diff,omitempty"`
	Idx  string         `json:"idx,omitempty"`
	Fun  string         `json:"fun,omitempty"`
	Dup  bool           `json:"dup,omitempty"`
}

// Transaction composes multi-table operations under one atomic unit.
type Transaction struct {
	KV          *kvengine.Tx
	replay      bool
	descriptors []Descriptor
	done        bool
}

// New wraps an already-begun KV transaction. replay marks a transaction as
// replay-originated (spec section 4.6): its mutations must not be appended
// to the binary log again.
func New(kv *kvengine.Tx, replay bool) *Transaction {
	return &Transaction{KV: kv, replay: replay}
}

// Record appends one mutation descriptor. Table methods call this once per
// invoked mutating call, in call order.
func (t *Transaction) Record(d Descriptor) {
	t.descriptors = append(t.descriptors, d)
}

// Descriptors returns the descriptors recorded so far, for inspection by
// tests and the replica consumer.
func (t *Transaction) Descriptors() []Descriptor {
	return t.descriptors
}

// Commit finalizes the transaction per spec section 4.6:
//   - an empty descriptor list is a no-op rollback by design, not an error;
//   - a non-empty list appends to the binary log first (unless this
//     transaction is itself replaying a prior log entry), then commits;
//   - any error along the way aborts the underlying KV transaction and
//     nothing is logged.
func (t *Transaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true

	if len(t.descriptors) == 0 {
		return t.KV.Rollback()
	}

	if !t.replay && t.KV.Writable() && binlog.Enabled(t.KV) {
		raw := make([]json.RawMessage, 0, len(t.descriptors))
		for _, d := range t.descriptors {
			data, err := json.Marshal(d)
			if err != nil {
				_ = t.KV.Rollback()
				return err
			}
			raw = append(raw, data)
		}
		if _, err := binlog.Append(t.KV, raw); err != nil {
			_ = t.KV.Rollback()
			return err
		}
	}

	if err := t.KV.Commit(); err != nil {
		return err
	}
	return nil
}

// Abort rolls back the underlying KV transaction, discarding every
// mutation recorded through it.
func (t *Transaction) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.KV.Rollback()
}
