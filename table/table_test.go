package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddjobz/nndb/document"
	"github.com/oddjobz/nndb/kvengine"
	"github.com/oddjobz/nndb/nndberr"
	"github.com/oddjobz/nndb/txn"
)

// testOpener adapts a bare kvengine.Env to the Opener interface, the same
// role nndb.Database plays in production.
type testOpener struct {
	env *kvengine.Env
}

func (o *testOpener) Begin(write bool) (*txn.Transaction, error) {
	kv, err := o.env.Begin(write)
	if err != nil {
		return nil, err
	}
	return txn.New(kv, false), nil
}

func newTestTable(t *testing.T) *Table {
	t.Helper()
	env, err := kvengine.Open(t.TempDir(), kvengine.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return Open("issues", &testOpener{env: env})
}

func TestAppend_GeneratesID(t *testing.T) {
	tbl := newTestTable(t)
	id, err := tbl.Append(document.Document{"title": "fix bug"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, ok, err := tbl.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fix bug", doc["title"])
	assert.Equal(t, string(id), doc["_id"])
}

func TestAppend_HonorsCallerSuppliedID(t *testing.T) {
	tbl := newTestTable(t)
	id, err := tbl.Append(document.Document{"_id": "custom-1", "title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "custom-1", string(id))
}

func TestGet_Missing(t *testing.T) {
	tbl := newTestTable(t)
	_, ok, err := tbl.Get([]byte("nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCount(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Append(document.Document{"title": "a"})
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"title": "b"})
	require.NoError(t, err)
	n, err := tbl.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLast(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Append(document.Document{"_id": "a", "title": "first"})
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"_id": "b", "title": "second"})
	require.NoError(t, err)
	doc, ok, err := tbl.Last()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", doc["_id"])
}

func TestDelete(t *testing.T) {
	tbl := newTestTable(t)
	id, err := tbl.Append(document.Document{"title": "a"})
	require.NoError(t, err)
	require.NoError(t, tbl.Delete(id))
	_, ok, err := tbl.Get(id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_MissingIsFatal(t *testing.T) {
	tbl := newTestTable(t)
	err := tbl.Delete([]byte("nope"))
	assert.ErrorIs(t, err, nndberr.ErrNotFound)
}

func TestSave_RequiresID(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Save(document.Document{"title": "no id"})
	assert.ErrorIs(t, err, nndberr.ErrNoKey)
}

func TestSave_UpdatesAndReturnsDiff(t *testing.T) {
	tbl := newTestTable(t)
	id, err := tbl.Append(document.Document{"_id": "a", "title": "old", "n": float64(1)})
	require.NoError(t, err)

	diff, err := tbl.Save(document.Document{"_id": string(id), "title": "new", "n": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, [2]any{"old", "new"}, diff["title"])
	assert.NotContains(t, diff, "n")

	doc, ok, err := tbl.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", doc["title"])
}

func TestSave_MissingIsNotFound(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Save(document.Document{"_id": "nope", "title": "x"})
	assert.ErrorIs(t, err, nndberr.ErrNotFound)
}

func TestUpsert_AppendsWithoutID(t *testing.T) {
	tbl := newTestTable(t)
	id, created, err := tbl.Upsert(document.Document{"title": "a"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
}

func TestUpsert_SavesWithExistingID(t *testing.T) {
	tbl := newTestTable(t)
	id, err := tbl.Append(document.Document{"_id": "a", "title": "old"})
	require.NoError(t, err)

	gotID, created, err := tbl.Upsert(document.Document{"_id": string(id), "title": "new"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, gotID)

	doc, _, err := tbl.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "new", doc["title"])
}

func TestEmpty_ClearsDocumentsKeepsTable(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Append(document.Document{"title": "a"})
	require.NoError(t, err)
	require.NoError(t, tbl.Empty())
	n, err := tbl.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = tbl.Append(document.Document{"title": "b"})
	require.NoError(t, err)
	n, err = tbl.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDrop_RemovesIndexesToo(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Index("by_title", "{title}", false)
	require.NoError(t, err)
	require.NoError(t, tbl.Drop())
	assert.Empty(t, tbl.Indexes())
}

func TestIndex_ReindexesExistingDocuments(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Append(document.Document{"_id": "a", "status": "open"})
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"_id": "b", "status": "closed"})
	require.NoError(t, err)

	_, err = tbl.Index("by_status", "{status}", false)
	require.NoError(t, err)

	doc, ok, err := tbl.SeekOne("by_status", document.Document{"status": "open"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", doc["_id"])
}

func TestIndex_DuplicateNameErrors(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Index("by_status", "{status}", false)
	require.NoError(t, err)
	_, err = tbl.Index("by_status", "{status}", false)
	assert.ErrorIs(t, err, nndberr.ErrIndexExists)
}

func TestEnsure_IdempotentWithoutForce(t *testing.T) {
	tbl := newTestTable(t)
	ix1, err := tbl.Ensure("by_status", "{status}", false, false)
	require.NoError(t, err)
	ix2, err := tbl.Ensure("by_status", "{status}", false, false)
	require.NoError(t, err)
	assert.Same(t, ix1, ix2)
}

func TestEnsure_ForceRecreates(t *testing.T) {
	tbl := newTestTable(t)
	ix1, err := tbl.Ensure("by_status", "{status}", false, false)
	require.NoError(t, err)
	ix2, err := tbl.Ensure("by_status", "{status}", false, true)
	require.NoError(t, err)
	assert.NotSame(t, ix1, ix2)
}

func TestDropIndex(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Index("by_status", "{status}", false)
	require.NoError(t, err)
	require.NoError(t, tbl.DropIndex("by_status"))
	assert.Empty(t, tbl.Indexes())
}

func TestDropIndex_Missing(t *testing.T) {
	tbl := newTestTable(t)
	err := tbl.DropIndex("nope")
	assert.ErrorIs(t, err, nndberr.ErrIndexMissing)
}

func TestFind_NaturalOrder(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Append(document.Document{"_id": "b", "title": "b"})
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"_id": "a", "title": "a"})
	require.NoError(t, err)

	it, err := tbl.Find("", nil, 0)
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var ids []string
	for {
		doc, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, doc["_id"].(string))
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestFind_WithPredicate(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Append(document.Document{"status": "open"})
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"status": "closed"})
	require.NoError(t, err)

	it, err := tbl.Find("", func(d document.Document) bool {
		return d["status"] == "open"
	}, 0)
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	doc, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "open", doc["status"])

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFind_Limit(t *testing.T) {
	tbl := newTestTable(t)
	for i := 0; i < 5; i++ {
		_, err := tbl.Append(document.Document{"n": float64(i)})
		require.NoError(t, err)
	}
	it, err := tbl.Find("", nil, 2)
	require.NoError(t, err)
	defer func() { _ = it.Close() }()
	count := 0
	for {
		_, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
}

func TestSeek_MultipleMatches(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Index("by_status", "{status}", true)
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"_id": "a", "status": "open"})
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"_id": "b", "status": "open"})
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"_id": "c", "status": "closed"})
	require.NoError(t, err)

	it, err := tbl.Seek("by_status", document.Document{"status": "open"})
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var ids []string
	for {
		doc, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, doc["_id"].(string))
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRange_Natural_Inclusive(t *testing.T) {
	tbl := newTestTable(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := tbl.Append(document.Document{"_id": id})
		require.NoError(t, err)
	}
	it, err := tbl.Range("", document.Document{"_id": "b"}, document.Document{"_id": "c"}, true)
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var ids []string
	for {
		doc, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, doc["_id"].(string))
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestRange_Natural_Exclusive(t *testing.T) {
	tbl := newTestTable(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := tbl.Append(document.Document{"_id": id})
		require.NoError(t, err)
	}
	it, err := tbl.Range("", document.Document{"_id": "a"}, document.Document{"_id": "d"}, false)
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	var ids []string
	for {
		doc, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, doc["_id"].(string))
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestReindex_RebuildsFromPrimary(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Index("by_status", "{status}", false)
	require.NoError(t, err)
	_, err = tbl.Append(document.Document{"_id": "a", "status": "open"})
	require.NoError(t, err)

	// drop and recreate the index; Index itself repopulates it from the
	// primary bucket, and Reindex must leave it in that same state
	require.NoError(t, tbl.DropIndex("by_status"))
	_, err = tbl.Index("by_status", "{status}", false)
	require.NoError(t, err)

	require.NoError(t, tbl.Reindex())
	doc, ok, err := tbl.SeekOne("by_status", document.Document{"status": "open"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", doc["_id"])
}
