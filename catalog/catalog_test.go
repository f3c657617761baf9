package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddjobz/nndb/kvengine"
)

func openTestEnv(t *testing.T) *kvengine.Env {
	t.Helper()
	env, err := kvengine.Open(t.TempDir(), kvengine.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestPutGet(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	want := Entry{Conf: Conf{Key: "_issues_by_status", Dupsort: true, Create: true}, Func: "{status}"}
	require.NoError(t, Put(tx, "issues", "by_status", want))

	got, ok, err := Get(tx, "issues", "by_status")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestGet_Absent(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(false)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, ok, err := Get(tx, "issues", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	require.NoError(t, Put(tx, "issues", "by_status", Entry{}))
	require.NoError(t, Delete(tx, "issues", "by_status"))
	_, ok, err := Get(tx, "issues", "by_status")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_AbsentIsNotAnError(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	assert.NoError(t, Delete(tx, "issues", "nope"))
}

func TestList(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	require.NoError(t, Put(tx, "issues", "by_status", Entry{}))
	require.NoError(t, Put(tx, "issues", "by_priority", Entry{}))
	require.NoError(t, Put(tx, "comments", "by_issue", Entry{}))

	names, err := List(tx, "issues")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"by_status", "by_priority"}, names)
}

func TestDeleteTable(t *testing.T) {
	env := openTestEnv(t)
	tx, err := env.Begin(true)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	require.NoError(t, Put(tx, "issues", "by_status", Entry{}))
	require.NoError(t, Put(tx, "issues", "by_priority", Entry{}))

	require.NoError(t, DeleteTable(tx, "issues"))
	names, err := List(tx, "issues")
	require.NoError(t, err)
	assert.Empty(t, names)
}
