package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderKeyBetween(t *testing.T) {
	mid, err := OrderKeyBetween("1", "2")
	require.NoError(t, err)
	assert.Equal(t, OrderKey("1.5"), mid)

	again, err := OrderKeyBetween("1", mid)
	require.NoError(t, err)
	assert.Equal(t, OrderKey("1.25"), again)

	assert.Negative(t, CompareOrderKeys("1", mid))
	assert.Negative(t, CompareOrderKeys(mid, "2"))
	assert.Negative(t, CompareOrderKeys(again, mid))
}

func TestOrderKeyBetweenOpenEnds(t *testing.T) {
	first, err := OrderKeyBetween("", "")
	require.NoError(t, err)
	assert.Equal(t, OrderKey("1"), first)

	before, err := OrderKeyBetween("", "1")
	require.NoError(t, err)
	assert.Negative(t, CompareOrderKeys(before, "1"))

	after, err := OrderKeyBetween("3", "")
	require.NoError(t, err)
	assert.Positive(t, CompareOrderKeys(after, "3"))
}

func TestOrderKeyBetweenRejectsBadInput(t *testing.T) {
	_, err := OrderKeyBetween("2", "1")
	assert.Error(t, err)
	_, err = OrderKeyBetween("2", "2")
	assert.Error(t, err)
	_, err = OrderKeyBetween("x", "2")
	assert.Error(t, err)
}

func TestOrderKeyComparisonIsNumeric(t *testing.T) {
	assert.Negative(t, CompareOrderKeys("2", "10"))
	assert.Zero(t, CompareOrderKeys("1.50", "1.5"))
	assert.Positive(t, CompareOrderKeys("10", "9.5"))
}
