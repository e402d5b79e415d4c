package solver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuelConsume(t *testing.T) {
	f := NewFuel(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.Consume("g"))
	}
	assert.True(t, f.Exhausted())
	assert.Equal(t, 3, f.Used())

	err := f.Consume("Foo: Show")
	require.Error(t, err)
	assert.True(t, IsFuelExhausted(err))
	assert.Equal(t, 3, f.Used(), "a refused attempt is not counted")
	assert.Equal(t, "fuel exhausted at Foo: Show: 3 of 3 units used", err.Error())
}

func TestFuelZeroLimit(t *testing.T) {
	f := NewFuel(0)
	assert.True(t, f.Exhausted())
	assert.True(t, IsFuelExhausted(f.Consume("g")))
}

func TestIsFuelExhaustedWrapped(t *testing.T) {
	err := fmt.Errorf("solving: %w", &FuelExhaustedError{Goal: "g", Used: 1, Limit: 1})
	assert.True(t, IsFuelExhausted(err))
	assert.False(t, IsFuelExhausted(fmt.Errorf("other")))
	assert.False(t, IsFuelExhausted(nil))
}
