package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	// GIVEN
	a := 0.0
	b := 100.0
	c := 50.0

	expected := 0.5

	// WHEN
	result := Ratio(c, a, b)

	// THEN
	assert.Equal(t, expected, result)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, 0, Coerce(-5, 0, 255))
	assert.Equal(t, 255, Coerce(300, 0, 255))
	assert.Equal(t, 17, Coerce(17, 0, 255))
	assert.Equal(t, 1.5, Coerce(1.5, 0.0, 2.0))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 45.3, RoundTo(45.26, 1))
	assert.Equal(t, 45.0, RoundTo(44.96, 1))
	assert.Equal(t, 12.0, RoundTo(12.4, 0))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 50.2, Percentage(128, 255))
	assert.Equal(t, 100.0, Percentage(255, 255))
	assert.Equal(t, 0.0, Percentage(10, 0))
}
