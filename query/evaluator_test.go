package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddjobz/nndb/document"
)

func compileAt(t *testing.T, src string, now time.Time) Predicate {
	t.Helper()
	pred, err := CompileAt(src, now)
	require.NoError(t, err)
	return pred
}

func TestEvaluator_Equals(t *testing.T) {
	pred := compileAt(t, "status=open", time.Now())
	assert.True(t, pred(document.Document{"status": "open"}))
	assert.False(t, pred(document.Document{"status": "closed"}))
}

func TestEvaluator_NotEquals(t *testing.T) {
	pred := compileAt(t, "status!=open", time.Now())
	assert.False(t, pred(document.Document{"status": "open"}))
	assert.True(t, pred(document.Document{"status": "closed"}))
}

func TestEvaluator_NumericComparisons(t *testing.T) {
	pred := compileAt(t, "priority>1", time.Now())
	assert.True(t, pred(document.Document{"priority": float64(2)}))
	assert.False(t, pred(document.Document{"priority": float64(1)}))
}

func TestEvaluator_MissingAttrIsFalseForOrdering(t *testing.T) {
	pred := compileAt(t, "priority>1", time.Now())
	assert.False(t, pred(document.Document{}))
}

func TestEvaluator_EqualsAbsentTreatedAsNone(t *testing.T) {
	pred := compileAt(t, "assignee=none", time.Now())
	assert.True(t, pred(document.Document{}))
	assert.True(t, pred(document.Document{"assignee": nil}))
	assert.False(t, pred(document.Document{"assignee": "alice"}))
}

func TestEvaluator_And(t *testing.T) {
	pred := compileAt(t, "status=open AND priority>1", time.Now())
	assert.True(t, pred(document.Document{"status": "open", "priority": float64(2)}))
	assert.False(t, pred(document.Document{"status": "open", "priority": float64(1)}))
}

func TestEvaluator_Or(t *testing.T) {
	pred := compileAt(t, "status=open OR status=blocked", time.Now())
	assert.True(t, pred(document.Document{"status": "blocked"}))
	assert.False(t, pred(document.Document{"status": "closed"}))
}

func TestEvaluator_Not(t *testing.T) {
	pred := compileAt(t, "NOT status=closed", time.Now())
	assert.True(t, pred(document.Document{"status": "open"}))
	assert.False(t, pred(document.Document{"status": "closed"}))
}

func TestEvaluator_DurationRelative(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	pred := compileAt(t, "updated>7d", now)

	recent := now.Add(-1 * 24 * time.Hour).Format(time.RFC3339)
	old := now.Add(-10 * 24 * time.Hour).Format(time.RFC3339)

	assert.True(t, pred(document.Document{"updated": recent}))
	assert.False(t, pred(document.Document{"updated": old}))
}

func TestEvaluator_DurationWithUnixSeconds(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	pred := compileAt(t, "updated>7d", now)

	recent := now.Add(-1 * 24 * time.Hour).Unix()
	assert.True(t, pred(document.Document{"updated": float64(recent)}))
}

func TestEvaluator_StringFallbackForNonNumericOrdering(t *testing.T) {
	pred := compileAt(t, `name>"alice"`, time.Now())
	assert.True(t, pred(document.Document{"name": "bob"}))
	assert.False(t, pred(document.Document{"name": "aaron"}))
}

func TestEvaluator_Parenthesized(t *testing.T) {
	pred := compileAt(t, "(status=open OR status=blocked) AND priority<2", time.Now())
	assert.True(t, pred(document.Document{"status": "open", "priority": float64(1)}))
	assert.False(t, pred(document.Document{"status": "open", "priority": float64(2)}))
	assert.False(t, pred(document.Document{"status": "closed", "priority": float64(1)}))
}
