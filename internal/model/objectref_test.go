package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectRefRoundTrip(t *testing.T) {
	cases := []string{
		"d:7b1d0000-0000-0000-0000-000000000000/seq/participant/p:alice",
		"d:7b1d0000-0000-0000-0000-000000000000/seq/message/m:0042",
		"d:91aa0000-0000-0000-0000-000000000000/flow/node/n:authorize",
		"d:91aa0000-0000-0000-0000-000000000000/flow/edge/e:13",
	}
	for _, s := range cases {
		ref, err := ParseObjectRef(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, ref.String())

		reparsed, err := ParseObjectRef(ref.String())
		require.NoError(t, err)
		assert.Equal(t, ref, reparsed)
	}
}

func TestObjectRefUnknownCategorySegments(t *testing.T) {
	ref, err := ParseObjectRef("d:diag/custom/category/kind/o:1")
	require.NoError(t, err)
	assert.Equal(t, "custom/category/kind", ref.Category)
	assert.Equal(t, ObjectID("o:1"), ref.Object)
	assert.Equal(t, DiagramID("diag"), ref.Diagram)
	assert.Equal(t, "d:diag/custom/category/kind/o:1", ref.String())
}

func TestObjectRefRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"x:diag/seq/participant/p:alice",
		"d:/seq/participant/p:alice",
		"d:diag/seq",
		"d:diag/",
		"d:diag/seq/participant/",
		"d:diag/seq//p:alice",
	}
	for _, s := range cases {
		_, err := ParseObjectRef(s)
		assert.Error(t, err, s)
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("p:alice"))
	assert.Error(t, ValidateID(""))
	assert.Error(t, ValidateID("a/b"))
	assert.Error(t, ValidateID("a\nb"))
}
