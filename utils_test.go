package labflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEntityIDIsOpaqueHex(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEntityID()
		assert.True(t, IsValidEntityID(id), "generated id %q", id)
		assert.False(t, seen[id], "generated id %q twice", id)
		seen[id] = true
	}
}

func TestIsValidEntityIDRejectsOtherShapes(t *testing.T) {
	assert.False(t, IsValidEntityID(""))
	assert.False(t, IsValidEntityID("6897E1CD15F60B7DFC01A344"))
	assert.False(t, IsValidEntityID("6897e1cd15f60b7dfc01a34"))
	assert.False(t, IsValidEntityID("6897e1cd15f60b7dfc01a3444"))
	assert.False(t, IsValidEntityID("6897e1cd15f60b7dfc01a34z"))
	assert.False(t, IsValidEntityID("f47ac10b-58cc-4372-a567-0e02b2c3d479"))
}

func TestNewBarcodeMatchesLabelFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Regexp(t, `^BC-[A-Z0-9]{9}$`, NewBarcode())
	}
}

func TestNewOrderNumberCarriesDatePrefix(t *testing.T) {
	now := time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC)
	assert.Regexp(t, `^ORD-20260901-[0-9a-f]{6}$`, NewOrderNumber(now))
}
