package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusIsActive(t *testing.T) {
	active := []Status{StatusQueued, StatusProvisioning, StatusReady, StatusDeleting}
	for _, s := range active {
		assert.True(t, s.IsActive(), "expected %s to be active", s)
	}

	inactive := []Status{StatusFailed, StatusDeleted}
	for _, s := range inactive {
		assert.False(t, s.IsActive(), "expected %s to be inactive", s)
	}
}

func TestStoreEngineIsKnown(t *testing.T) {
	assert.True(t, EngineWooCommerce.IsKnown())
	assert.True(t, EngineMedusa.IsKnown())
	assert.False(t, StoreEngine("shopify").IsKnown())
	assert.False(t, StoreEngine("").IsKnown())
}
