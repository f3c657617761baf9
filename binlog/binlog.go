// Package binlog implements the optional append-only log of mutation
// batches (spec component C7): __binlog__ keyed by an 8-byte big-endian
// sequence number, and __binidx__, reserved for future cross-reference.
package binlog

import (
	"encoding/binary"
	"errors"

	json "github.com/goccy/go-json"

	"github.com/oddjobz/nndb/kvengine"
	"github.com/oddjobz/nndb/nndberr"
)

var errNotEnabled = errors.New("binary log is not enabled")

// LogBucket and IdxBucket are the two reserved sub-databases spec section 3
// names for the binary log.
const (
	LogBucket = "__binlog__"
	IdxBucket = "__binidx__"
)

// Batch is the serialized shape of one __binlog__ value: {"txn": [...]}.
// Descriptor is left as json.RawMessage here so this package stays
// independent of the txn package's Descriptor type; txn marshals its typed
// descriptors before passing them to Append, and readers receive the raw
// JSON undecoded.
type Batch struct {
	Txn []json.RawMessage `json:"txn"`
}

// Enabled reports whether binary logging is currently on, i.e. whether
// LogBucket exists.
func Enabled(tx *kvengine.Tx) bool {
	return tx.Bucket(LogBucket) != nil
}

// Enable turns on binary logging, writing the sentinel empty-batch entry at
// sequence 1 if the log was not already enabled (spec section 4.7).
func Enable(tx *kvengine.Tx) error {
	if Enabled(tx) {
		return nil
	}
	logB, err := tx.CreateBucketIfNotExists(LogBucket)
	if err != nil {
		return nndberr.Wrap("binlog.Enable", err)
	}
	if _, err := tx.CreateBucketIfNotExists(IdxBucket); err != nil {
		return nndberr.Wrap("binlog.Enable", err)
	}
	data, err := json.Marshal(Batch{Txn: []json.RawMessage{}})
	if err != nil {
		return nndberr.Wrap("binlog.Enable", err)
	}
	return nndberr.Wrap("binlog.Enable", logB.Put(seqKey(1), data))
}

// Disable drops both reserved buckets. Truncation of an enabled log is the
// caller's responsibility and must happen only while disabled (spec
// section 4.7).
func Disable(tx *kvengine.Tx) error {
	if err := tx.DeleteBucket(LogBucket); err != nil {
		return nndberr.Wrap("binlog.Disable", err)
	}
	return nndberr.Wrap("binlog.Disable", tx.DeleteBucket(IdxBucket))
}

// Append writes the next sequence number's batch. Sequence numbers start
// at 1 (claimed by Enable's sentinel) and increase without gaps.
func Append(tx *kvengine.Tx, descriptors []json.RawMessage) (uint64, error) {
	b := tx.Bucket(LogBucket)
	if b == nil {
		return 0, nndberr.Wrap("binlog.Append", errNotEnabled)
	}
	seq := nextSeq(b)
	data, err := json.Marshal(Batch{Txn: descriptors})
	if err != nil {
		return 0, nndberr.Wrap("binlog.Append", err)
	}
	if err := b.Put(seqKey(seq), data); err != nil {
		return 0, nndberr.Wrap("binlog.Append", err)
	}
	return seq, nil
}

// Read returns the batch stored at seq.
func Read(tx *kvengine.Tx, seq uint64) (Batch, bool, error) {
	var batch Batch
	b := tx.Bucket(LogBucket)
	if b == nil {
		return batch, false, nil
	}
	data := b.Get(seqKey(seq))
	if data == nil {
		return batch, false, nil
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return batch, false, nndberr.Wrap("binlog.Read", err)
	}
	return batch, true, nil
}

// Each walks every batch in sequence order, stopping on the first error fn
// returns.
func Each(tx *kvengine.Tx, fn func(seq uint64, batch Batch) error) error {
	b := tx.Bucket(LogBucket)
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var batch Batch
		if err := json.Unmarshal(v, &batch); err != nil {
			return nndberr.Wrap("binlog.Each", err)
		}
		if err := fn(binary.BigEndian.Uint64(k), batch); err != nil {
			return err
		}
	}
	return nil
}

func nextSeq(b *kvengine.Bucket) uint64 {
	c := b.Cursor()
	k, _ := c.Last()
	if k == nil {
		return 1
	}
	return binary.BigEndian.Uint64(k) + 1
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
