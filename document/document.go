// Package document defines the schemaless attribute map stored by a table
// and the handful of coercions the engine performs at its boundaries.
//
// A document's values are whatever encoding/json would decode a JSON object
// into: nil, bool, float64, string, []byte (as base64 string on the wire),
// []any, or map[string]any. The engine never needs a bespoke tagged-variant
// type for this because templates only ever read scalar leaves (spec section
// 4.2) and JSON's own dynamic typing already gives exactly the eight cases
// design note calls for (null/bool/number split into int/float by callers
// that care, string, bytes-as-string, list, map).
package document

import (
	"fmt"
	"strconv"

	"github.com/oddjobz/nndb/nndberr"
)

// IDAttr is the reserved attribute holding a document's primary key. It is
// never present in the serialized payload on disk; it is the KV key.
const IDAttr = "_id"

// Document is a finite mapping from attribute name to value. Two documents
// in the same table may have disjoint attribute sets.
type Document map[string]any

// Clone returns a shallow copy. Callers that hold onto a document across a
// Save must not mutate the map they passed in; Table itself never retains
// caller-owned maps past the call that received them.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ID returns the document's _id attribute, if present.
func (d Document) ID() (any, bool) {
	v, ok := d[IDAttr]
	return v, ok
}

// WithoutID returns a copy of d with _id removed, ready for serialization;
// _id is carried out-of-band as the KV key (spec section 3).
func (d Document) WithoutID() Document {
	if _, ok := d[IDAttr]; !ok {
		return d
	}
	out := d.Clone()
	delete(out, IDAttr)
	return out
}

// CoerceID normalizes a caller-supplied _id to bytes. This is the single
// boundary function the engine uses to resolve string-vs-raw id ambiguity,
// per the first Open Question in spec section 9.
func CoerceID(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		out := make([]byte, len(t))
		copy(out, t)
		return out, nil
	case string:
		return []byte(t), nil
	case int:
		return []byte(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(t, 10)), nil
	case float64:
		// JSON round-trips whole numbers as float64; only accept those that
		// are exact integers so we don't silently truncate a real float id.
		if t == float64(int64(t)) {
			return []byte(strconv.FormatInt(int64(t), 10)), nil
		}
		return nil, nndberr.Wrap("CoerceID", fmt.Errorf("%w: non-integral float %v", nndberr.ErrTypeError, t))
	default:
		return nil, nndberr.Wrap("CoerceID", fmt.Errorf("%w: %T", nndberr.ErrTypeError, v))
	}
}

// Diff is the structural delta returned by Table.Save: attribute name to
// [old, new] pair. A nil element means the attribute was absent on that
// side. This is the shape spec section 4.4 calls a "diff" and section 9
// (renaming the undocumented "yyy" binlog field) settles on by name.
type Diff map[string][2]any

// Compare produces the Diff between an old and a new document, ignoring
// _id (which cannot change across a Save).
func Compare(oldDoc, newDoc Document) Diff {
	d := Diff{}
	seen := make(map[string]bool, len(oldDoc)+len(newDoc))
	for k, ov := range oldDoc {
		if k == IDAttr {
			continue
		}
		seen[k] = true
		nv, ok := newDoc[k]
		if !ok {
			d[k] = [2]any{ov, nil}
			continue
		}
		if !equal(ov, nv) {
			d[k] = [2]any{ov, nv}
		}
	}
	for k, nv := range newDoc {
		if k == IDAttr || seen[k] {
			continue
		}
		d[k] = [2]any{nil, nv}
	}
	return d
}

func equal(a, b any) bool {
	// fmt.Sprint is good enough for the dynamically-typed values JSON decode
	// produces; documents are schemaless so a == b can't be used directly
	// when one side came from a literal Go value and the other from JSON.
	return fmt.Sprint(a) == fmt.Sprint(b)
}
