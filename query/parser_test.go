package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleComparison(t *testing.T) {
	node, err := Parse("status=open")
	require.NoError(t, err)
	comp, ok := node.(*ComparisonNode)
	require.True(t, ok)
	assert.Equal(t, "status", comp.Attr)
	assert.Equal(t, OpEquals, comp.Op)
	assert.Equal(t, "open", comp.Value)
}

func TestParse_AndPrecedesOr(t *testing.T) {
	// a=1 OR b=2 AND c=3 should parse as a=1 OR (b=2 AND c=3)
	node, err := Parse("a=1 OR b=2 AND c=3")
	require.NoError(t, err)
	or, ok := node.(*OrNode)
	require.True(t, ok)
	_, leftIsComparison := or.Left.(*ComparisonNode)
	assert.True(t, leftIsComparison)
	_, rightIsAnd := or.Right.(*AndNode)
	assert.True(t, rightIsAnd)
}

func TestParse_Not(t *testing.T) {
	node, err := Parse("NOT status=closed")
	require.NoError(t, err)
	not, ok := node.(*NotNode)
	require.True(t, ok)
	_, isComparison := not.Operand.(*ComparisonNode)
	assert.True(t, isComparison)
}

func TestParse_Parentheses(t *testing.T) {
	node, err := Parse("(status=open OR status=blocked) AND priority<2")
	require.NoError(t, err)
	and, ok := node.(*AndNode)
	require.True(t, ok)
	_, leftIsOr := and.Left.(*OrNode)
	assert.True(t, leftIsOr)
}

func TestParse_EmptyQuery(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParse_MissingOperator(t *testing.T) {
	_, err := Parse("status open")
	assert.Error(t, err)
}

func TestParse_UnbalancedParens(t *testing.T) {
	_, err := Parse("(status=open")
	assert.Error(t, err)
}

func TestParse_TrailingGarbage(t *testing.T) {
	_, err := Parse("status=open )")
	assert.Error(t, err)
}
