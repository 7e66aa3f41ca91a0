package shipment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	orderID := uuid.New()
	s := New(orderID, "Sydney", "42 Wallaby Way")

	assert.Equal(t, orderID, s.OrderID)
	assert.Equal(t, StateRequested, s.State)
	assert.False(t, s.Cancelled)
	assert.Equal(t, 1, s.Version)
}

func TestState_Final(t *testing.T) {
	tests := []struct {
		state State
		final bool
	}{
		{StateRequested, false},
		{StateInTransit, false},
		{StateDelivered, true},
		{StateLost, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.final, tt.state.Final())
		})
	}
}

func TestShipment_Advance(t *testing.T) {
	t.Run("full run to delivery", func(t *testing.T) {
		s := New(uuid.New(), "Melbourne", "addr")
		require.NoError(t, s.Advance(StateInTransit))
		require.NoError(t, s.Advance(StateDelivered))
		assert.Equal(t, StateDelivered, s.State)
		assert.Equal(t, 3, s.Version)
	})

	t.Run("final state rejects advance", func(t *testing.T) {
		s := New(uuid.New(), "Melbourne", "addr")
		require.NoError(t, s.Advance(StateInTransit))
		require.NoError(t, s.Advance(StateLost))

		err := s.Advance(StateDelivered)
		assert.ErrorIs(t, err, ErrAlreadyFinal)
		assert.Equal(t, StateLost, s.State)
	})
}

func TestShipment_Cancel(t *testing.T) {
	t.Run("before transit", func(t *testing.T) {
		s := New(uuid.New(), "Brisbane", "addr")
		require.NoError(t, s.Cancel())
		assert.True(t, s.Cancelled)
		assert.Equal(t, StateCancelled, s.State)
	})

	t.Run("after delivery", func(t *testing.T) {
		s := New(uuid.New(), "Brisbane", "addr")
		require.NoError(t, s.Advance(StateInTransit))
		require.NoError(t, s.Advance(StateDelivered))

		err := s.Cancel()
		assert.ErrorIs(t, err, ErrAlreadyFinal)
		assert.False(t, s.Cancelled)
		assert.Equal(t, StateDelivered, s.State)
	})
}
