package domain

import "errors"

var (
	// ErrActivityNotFound is returned when an activity cannot be located for the user.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidFrequency is returned for cadences other than daily, weekly or monthly.
	ErrInvalidFrequency = errors.New("invalid frequency")
	// ErrInvalidMonth is returned when a month overview is requested outside 1..12.
	ErrInvalidMonth = errors.New("invalid month")
	// ErrInvalidThreshold is returned when the progress threshold is outside 0..100.
	ErrInvalidThreshold = errors.New("threshold percentage must be between 0 and 100")
	// ErrTitleRequired is returned when an activity has a blank title.
	ErrTitleRequired = errors.New("title is required")
)
