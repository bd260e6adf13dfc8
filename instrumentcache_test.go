package labflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstrumentCache(t *testing.T) {
	cache := NewInstrumentCache()

	_, ok := cache.GetByID("6897e1cd15f60b7dfc01a510")
	assert.False(t, ok)
	assert.Empty(t, cache.GetAll())

	cache.Set([]Instrument{
		{ID: "6897e1cd15f60b7dfc01a510", Name: "Sysmex XN-1000", Status: InstrumentReady},
		{ID: "6897e1cd15f60b7dfc01a511", Name: "Cobas 8000", Status: InstrumentOffline},
	})

	instrument, ok := cache.GetByID("6897e1cd15f60b7dfc01a511")
	assert.True(t, ok)
	assert.Equal(t, "Cobas 8000", instrument.Name)
	assert.Len(t, cache.GetAll(), 2)

	cache.Invalidate()

	_, ok = cache.GetByID("6897e1cd15f60b7dfc01a510")
	assert.False(t, ok)
	assert.Empty(t, cache.GetAll())
}
