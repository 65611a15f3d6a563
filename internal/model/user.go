package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User holds the identity fields this module needs plus the running aggregate balances.
type User struct {
	CreatedAt        time.Time
	Email            string
	Name             string
	PhoneNumber      string
	Address          string
	EmploymentStatus string
	AccessToken      string
	SyncCursor       string
	Balance          decimal.Decimal
	ManualBalance    decimal.Decimal
	ID               int64
}

// ProfileUpdate lists the user fields that may be changed from the outside.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name             *string
	PhoneNumber      *string
	Address          *string
	EmploymentStatus *string
	AccessToken      *string
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.PhoneNumber == nil && p.Address == nil &&
		p.EmploymentStatus == nil && p.AccessToken == nil
}

// Account is a provider account linked by a user.
type Account struct {
	ExternalID string
	Name       string
	Type       string
	Subtype    string
	ID         int64
	UserID     int64
}
