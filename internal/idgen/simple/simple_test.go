package simple

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Sequential(t *testing.T) {
	g := New("bk-")

	first, err := g.GetID(context.Background())
	require.NoError(t, err)

	second, err := g.GetID(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "bk-000001", first)
	assert.Equal(t, "bk-000002", second)
	assert.Less(t, first, second)
}
