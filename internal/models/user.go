package models

import "time"

// User is created the first time one of its bans is observed. Deleted is
// owned by account reconciliation and never touched by ban handling.
type User struct {
	ID               int64      `gorm:"primaryKey;autoIncrement:false"`
	AccountCreatedAt *time.Time `gorm:"column:created_at"`
	Deleted          bool       `gorm:"not null;default:false"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// AccountAge returns how old the account was at t, if the creation time is known.
func (u *User) AccountAge(at time.Time) (time.Duration, bool) {
	if u == nil || u.AccountCreatedAt == nil {
		return 0, false
	}
	return at.Sub(*u.AccountCreatedAt), true
}
