package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-forecast/internal/store"
)

func TestNewSelectsProvider(t *testing.T) {
	cfg := store.Default()

	f, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "financialdatasets", f.Name())

	cfg.Provider = store.ProviderKite
	f, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "kite", f.Name())

	cfg.Provider = "CSV"
	_, err = New(cfg)
	assert.Error(t, err)
}
