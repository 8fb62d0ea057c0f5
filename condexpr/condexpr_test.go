package condexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionSelectsBranchFromData(t *testing.T) {
	eval := NewEvaluator(0)
	data := map[string]any{"score": 95}
	cond := eval.Condition("score >= 90 ? 0 : score >= 60 ? 1 : 2", data)
	require.Equal(t, 0, cond())

	data["score"] = 70
	assert.Equal(t, 1, cond())

	data["score"] = 10
	assert.Equal(t, 2, cond())
}

func TestConditionInvalidExpressionResolvesToMinusOne(t *testing.T) {
	eval := NewEvaluator(0)
	cond := eval.Condition("this is not valid expr ][", map[string]any{})
	assert.Equal(t, -1, cond())
}

func TestMultiConditionReturnsTrueIndices(t *testing.T) {
	eval := NewEvaluator(0)
	data := map[string]any{"cpu": 92, "mem": 40, "disk": 88}
	multi := eval.MultiCondition([]string{"cpu > 90", "mem > 90", "disk > 80"}, data)
	assert.ElementsMatch(t, []int{0, 2}, multi())
}

func TestProgramCacheEvictsBeyondCapacity(t *testing.T) {
	eval := NewEvaluator(1)
	data := map[string]any{"x": 1}

	_, err := eval.compile("x", data)
	require.NoError(t, err)
	_, ok := eval.cache.get("x")
	require.True(t, ok)

	_, err = eval.compile("x + 1", data)
	require.NoError(t, err)
	_, ok = eval.cache.get("x")
	assert.False(t, ok, "first entry should have been evicted once capacity was exceeded")
}
