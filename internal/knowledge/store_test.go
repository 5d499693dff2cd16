package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchWithoutPool(t *testing.T) {
	store := New(nil)

	passages, err := store.Search(context.Background(), []float32{0.1, 0.2}, 2)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestSearchNilStore(t *testing.T) {
	var store *Store

	passages, err := store.Search(context.Background(), []float32{0.1}, 2)
	require.NoError(t, err)
	assert.Empty(t, passages)
}
