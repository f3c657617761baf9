// Package replica defines the narrow interface a replication collaborator
// implements to consume the binary log (spec section 4.7's "out-of-scope
// replication collaborator"). nndb itself only produces the log; shipping
// it to a replica and replaying it there is deliberately left to a
// consumer of this package, the same division of responsibility the
// teacher draws between StorageProvider (a thin adapter interface) and its
// own orphan-detection caller.
package replica

import (
	json "github.com/goccy/go-json"
)

// Batch is one __binlog__ entry: the sequence number it was stored under
// and its raw descriptor list, left undecoded so a Consumer can apply its
// own Descriptor type without this package depending on txn.
type Batch struct {
	Seq uint64
	Txn []json.RawMessage
}

// Consumer receives binary log batches in sequence order, starting after
// From (0 meaning "from the beginning").
type Consumer interface {
	// From reports the last sequence number this consumer has durably
	// applied, so a Source can resume after a restart without re-sending
	// already-applied batches.
	From() (uint64, error)

	// Apply processes one batch. Returning an error stops replication; a
	// Source must not advance past a batch that failed to apply.
	Apply(batch Batch) error
}

// Source pulls batches from an opened environment and feeds them to a
// Consumer. The nndb package's Replicate method implements this by reading
// __binlog__ via the binlog package.
type Source interface {
	// Replicate streams every batch after consumer.From() to consumer, in
	// sequence order, stopping at the first error either side returns.
	Replicate(consumer Consumer) error
}
