package domain

import "time"

// well-known setting keys
const (
	SettingAdFrequency      = "ad_frequency"       // news items between main feed ads
	SettingAstonAdFrequency = "aston_ad_frequency" // news items between aston (bottom slot) ads
)

// Setting represents a key-value system setting
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
