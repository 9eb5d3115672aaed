package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent(t *testing.T) {
	assert.Equal(t, int64(250), Percent(2500, 10))
	assert.Equal(t, int64(167), Percent(1111, 15))
	assert.Equal(t, int64(0), Percent(0, 50))
}

func TestFraction(t *testing.T) {
	assert.Equal(t, int64(80), Fraction(1000, 0.08))
	assert.Equal(t, int64(1), Fraction(5, 0.1))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$12.50", Format(1250, "USD"))
	assert.Equal(t, "€0.05", Format(5, "eur"))
	assert.Equal(t, "9.99 NGN", Format(999, "ngn"))
	assert.Equal(t, 12.5, ToFloat(1250))
}
