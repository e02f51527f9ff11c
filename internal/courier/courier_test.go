package courier

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackingPattern = regexp.MustCompile(`^TR[0-9A-Z]{9}$`)

func TestMockCourierTrackingNumber(t *testing.T) {
	c := NewMock(0)
	tracking, err := c.RequestTrackingNumber(context.Background(), Shipment{
		ReturnID: "r1", Date: "2030-01-01", Address: "Rue Haute 1",
	})
	require.NoError(t, err)
	assert.Regexp(t, trackingPattern, tracking)

	other, err := c.RequestTrackingNumber(context.Background(), Shipment{
		ReturnID: "r1", Date: "2030-01-01", Address: "Rue Haute 1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, tracking, other)
}

func TestMockCourierRespectsContext(t *testing.T) {
	c := NewMock(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.RequestTrackingNumber(ctx, Shipment{Date: "2030-01-01", Address: "Rue Haute 1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockCourierRejectsIncompleteShipment(t *testing.T) {
	_, err := NewMock(0).RequestTrackingNumber(context.Background(), Shipment{})
	assert.Error(t, err)
}

func TestRandomBase36(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := randomBase36(9)
		require.Len(t, id, 9)
		assert.Regexp(t, `^[0-9A-Z]{9}$`, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 190)
}
