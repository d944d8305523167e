package domain

import "time"

// DefaultThresholdPercentage is the dashboard goal applied to new users.
const DefaultThresholdPercentage = 70

// Settings holds per-user preferences.
type Settings struct {
	UserID              string
	ThresholdPercentage int
	Username            string
	DarkMode            bool
	Email               string
	RemindersEnabled    bool
	UpdatedAt           time.Time
}

// DefaultSettings returns the preferences used before a user saves any.
func DefaultSettings(userID string, now time.Time) Settings {
	return Settings{
		UserID:              userID,
		ThresholdPercentage: DefaultThresholdPercentage,
		RemindersEnabled:    true,
		UpdatedAt:           now,
	}
}
