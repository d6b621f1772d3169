package leveling

import "math"

// costPerLevel is the XP required to advance from level n to n+1, as a
// multiple of n. Level 1 → 2 costs 100 XP, level 2 → 3 costs 200 XP, etc.
const costPerLevel = 100

// FromXP returns the level reached with the given lifetime XP.
// XP never decreases, so level never decreases either.
func FromXP(xp int64) int {
	level := 1
	remaining := xp
	for {
		cost := int64(costPerLevel * level)
		if remaining < cost {
			return level
		}
		remaining -= cost
		level++
	}
}

// Progress reports the current level, the XP accumulated within that
// level, and the XP needed to reach the next level.
func Progress(xp int64) (level int, into int64, needed int64) {
	level = 1
	into = xp
	for {
		cost := int64(costPerLevel * level)
		if into < cost {
			return level, into, cost
		}
		into -= cost
		level++
	}
}

// Fraction returns how far the account is into its current level as a
// fraction in [0, 1).
func Fraction(xp int64) float64 {
	_, into, needed := Progress(xp)
	return float64(into) / float64(needed)
}

// ScaledValue scales a base quest value by the account's level.
// The multiplier grows by step per level above 1 and the result is
// rounded to the nearest integer, never below the base.
func ScaledValue(base, level int, step float64) int {
	if level <= 1 || base <= 0 {
		return base
	}
	scaled := int(math.Round(float64(base) * (1 + step*float64(level-1))))
	if scaled < base {
		return base
	}
	return scaled
}
