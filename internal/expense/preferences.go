package expense

import "github.com/shopspring/decimal"

// Preferences are per-user reminder settings.
type Preferences struct {
	UserID               string          `json:"userId"`
	NotificationsEnabled bool            `json:"notificationsEnabled"`
	WeeklyBudget         decimal.Decimal `json:"weeklyBudget"` // zero means the server default
}

// DefaultPreferences returns the settings for a user who never saved any.
func DefaultPreferences(userID string) Preferences {
	return Preferences{UserID: userID, NotificationsEnabled: true}
}
