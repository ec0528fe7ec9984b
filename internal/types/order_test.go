package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusSubmitted))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusRejected))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusFailed))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusFilled))
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusCancelled))

	assert.True(t, OrderStatusSubmitted.CanTransitionTo(OrderStatusOpen))
	assert.True(t, OrderStatusSubmitted.CanTransitionTo(OrderStatusFilled))
	assert.True(t, OrderStatusOpen.CanTransitionTo(OrderStatusPartiallyFilled))
	assert.True(t, OrderStatusPartiallyFilled.CanTransitionTo(OrderStatusFilled))
	assert.True(t, OrderStatusPartiallyFilled.CanTransitionTo(OrderStatusCancelled))

	// Terminal states never move again.
	for _, terminal := range []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusFailed} {
		for _, next := range []OrderStatus{OrderStatusPending, OrderStatusSubmitted, OrderStatusOpen, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled} {
			assert.False(t, terminal.CanTransitionTo(next), "%s -> %s must be illegal", terminal, next)
		}
	}

	// Self transitions are no-ops, not moves.
	assert.False(t, OrderStatusOpen.CanTransitionTo(OrderStatusOpen))
}

func TestOrderStatusClassification(t *testing.T) {
	assert.True(t, OrderStatusFilled.Terminal())
	assert.True(t, OrderStatusRejected.Terminal())
	assert.False(t, OrderStatusOpen.Terminal())

	assert.True(t, OrderStatusSubmitted.Resting())
	assert.True(t, OrderStatusPartiallyFilled.Resting())
	assert.False(t, OrderStatusPending.Resting())
	assert.False(t, OrderStatusFilled.Resting())
}

func TestParseSide(t *testing.T) {
	side, err := ParseSide(" BUY ")
	assert.NoError(t, err)
	assert.Equal(t, SideBuy, side)

	side, err = ParseSide("short")
	assert.NoError(t, err)
	assert.Equal(t, SideSell, side)

	_, err = ParseSide("hold")
	assert.Error(t, err)

	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}
