package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromXP(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3}, // 100 + 200
		{599, 3},
		{600, 4}, // 100 + 200 + 300
		{1000, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.level, FromXP(c.xp), "xp=%d", c.xp)
	}
}

func TestFromXP_Monotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 5000; xp += 7 {
		l := FromXP(xp)
		assert.GreaterOrEqual(t, l, prev)
		prev = l
	}
}

func TestProgress(t *testing.T) {
	level, into, needed := Progress(0)
	assert.Equal(t, 1, level)
	assert.Equal(t, int64(0), into)
	assert.Equal(t, int64(100), needed)

	level, into, needed = Progress(150)
	assert.Equal(t, 2, level)
	assert.Equal(t, int64(50), into)
	assert.Equal(t, int64(200), needed)

	level, into, needed = Progress(300)
	assert.Equal(t, 3, level)
	assert.Equal(t, int64(0), into)
	assert.Equal(t, int64(300), needed)
}

func TestProgress_AgreesWithFromXP(t *testing.T) {
	for xp := int64(0); xp <= 3000; xp += 13 {
		level, _, _ := Progress(xp)
		assert.Equal(t, FromXP(xp), level, "xp=%d", xp)
	}
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 0.0, Fraction(0))
	assert.Equal(t, 0.5, Fraction(50))   // level 1, 50 of 100
	assert.Equal(t, 0.75, Fraction(250)) // level 2, 150 of 200
	assert.Equal(t, 0.0, Fraction(300))  // exact level 3 boundary
}

func TestFraction_WithinUnitInterval(t *testing.T) {
	for xp := int64(0); xp <= 5000; xp += 11 {
		f := Fraction(xp)
		assert.GreaterOrEqual(t, f, 0.0, "xp=%d", xp)
		assert.Less(t, f, 1.0, "xp=%d", xp)
	}
}

func TestScaledValue(t *testing.T) {
	assert.Equal(t, 10, ScaledValue(10, 1, 0.1))
	assert.Equal(t, 11, ScaledValue(10, 2, 0.1))
	assert.Equal(t, 12, ScaledValue(10, 3, 0.1))
	assert.Equal(t, 28, ScaledValue(20, 5, 0.1)) // 20 * 1.4
}

func TestScaledValue_NeverBelowBase(t *testing.T) {
	for level := 1; level <= 50; level++ {
		assert.GreaterOrEqual(t, ScaledValue(10, level, 0.1), 10)
	}
}

func TestScaledValue_ZeroBase(t *testing.T) {
	assert.Equal(t, 0, ScaledValue(0, 10, 0.1))
}
