package model

import "time"

// Band is a spend-vs-limit range that triggers a notification.
type Band string

const (
	// BandNone means spending is below every threshold.
	BandNone Band = ""
	// BandFifty covers spending from 50% up to 75% of the limit.
	BandFifty Band = "fifty_percent"
	// BandSeventyFive covers spending from 75% up to 90% of the limit.
	BandSeventyFive Band = "seventy_five_percent"
	// BandNinety covers spending from 90% up to 100% of the limit.
	BandNinety Band = "ninety_percent"
	// BandHundred covers spending at or over the limit.
	BandHundred Band = "hundred_percent"
)

// Notification is an append-only message addressed to a user.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Title     string
	Message   string
	Band      Band
	UserID    int64
	BucketID  int64
	Read      bool
}
