package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductPatchFromSet(t *testing.T) {
	patch, err := productPatchFromSet([]string{"price=14990", "Name=Ramo Otoño", "stock=0", "category_id=2"})
	require.NoError(t, err)
	require.NotNil(t, patch.Price)
	assert.EqualValues(t, 14990, *patch.Price)
	require.NotNil(t, patch.Name)
	assert.Equal(t, "Ramo Otoño", *patch.Name)
	require.NotNil(t, patch.Stock)
	assert.Equal(t, 0, *patch.Stock)
	require.NotNil(t, patch.CategoryID)
	assert.Equal(t, 2, *patch.CategoryID)
	assert.Nil(t, patch.SKU)

	patch, err = productPatchFromSet(nil)
	require.NoError(t, err)
	assert.True(t, patch.Empty())

	patch, err = productPatchFromSet([]string{"price=1", "price=2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, *patch.Price)
}

func TestProductPatchFromSetRejects(t *testing.T) {
	for _, pairs := range [][]string{
		{"price"},
		{"=3"},
		{"colour=red"},
		{"price=cheap"},
	} {
		_, err := productPatchFromSet(pairs)
		assert.Error(t, err, pairs)
	}
}
