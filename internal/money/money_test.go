package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "33.34", Round(MustParse("33.335")).StringFixed(2))
	assert.Equal(t, "33.33", Round(MustParse("33.3333")).StringFixed(2))
	assert.Equal(t, "-1.01", Round(MustParse("-1.005")).StringFixed(2))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "1.50", Percent(MustParse("15.00"), decimal.NewFromInt(10)).StringFixed(2))
	assert.Equal(t, "0.33", Percent(MustParse("3.33"), decimal.NewFromInt(10)).StringFixed(2))
}

func TestShare_LiveRemainderAbsorbsResidue(t *testing.T) {
	remaining := MustParse("100.00")

	first := Share(remaining, 3, 1)
	assert.Equal(t, "33.33", first.StringFixed(2))
	remaining = remaining.Sub(first)

	second := Share(remaining, 2, 1)
	assert.Equal(t, "33.34", second.StringFixed(2))
	remaining = remaining.Sub(second)

	third := Share(remaining, 1, 1)
	assert.Equal(t, "33.33", third.StringFixed(2))
	assert.True(t, Sum(first, second, third).Equal(MustParse("100.00")))
}

func TestShare_MultipleShares(t *testing.T) {
	assert.Equal(t, "57.14", Share(MustParse("100.00"), 7, 4).StringFixed(2))
	assert.True(t, Share(MustParse("10.00"), 0, 1).IsZero())
}

func TestWithinToleranceAndSettled(t *testing.T) {
	assert.True(t, WithinTolerance(MustParse("10.00"), MustParse("10.01")))
	assert.False(t, WithinTolerance(MustParse("10.00"), MustParse("10.02")))
	assert.True(t, IsSettled(MustParse("0.01")))
	assert.False(t, IsSettled(MustParse("0.02")))
}

func TestProrate(t *testing.T) {
	assert.Equal(t, "3.33", Prorate(MustParse("10.00"), 1, 3).StringFixed(2))
	assert.Equal(t, "10.00", Prorate(MustParse("10.00"), 3, 3).StringFixed(2))
	assert.True(t, Prorate(MustParse("10.00"), 1, 0).IsZero())
}
