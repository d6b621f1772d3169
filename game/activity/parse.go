package activity

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBadDuration is returned for duration input that fails validation.
var ErrBadDuration = errors.New("activity: invalid duration")

// MaxDuration caps a single timed activity.
const MaxDuration = 12 * time.Hour

// ParseDuration parses a user-entered activity duration.
// A bare number is a minute count; "mm:ss" and "hh:mm:ss" forms are also
// accepted. Components must be numeric and non-negative, seconds and
// minutes in the colon forms must be below 60, and the total must be
// positive and at most MaxDuration.
func ParseDuration(input string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(input), ":")

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, ErrBadDuration
		}
		nums[i] = n
	}

	var total time.Duration
	switch len(nums) {
	case 1:
		total = time.Duration(nums[0]) * time.Minute
	case 2:
		if nums[1] >= 60 {
			return 0, ErrBadDuration
		}
		total = time.Duration(nums[0])*time.Minute + time.Duration(nums[1])*time.Second
	case 3:
		if nums[1] >= 60 || nums[2] >= 60 {
			return 0, ErrBadDuration
		}
		total = time.Duration(nums[0])*time.Hour + time.Duration(nums[1])*time.Minute + time.Duration(nums[2])*time.Second
	default:
		return 0, ErrBadDuration
	}

	if total <= 0 || total > MaxDuration {
		return 0, ErrBadDuration
	}
	return total, nil
}
