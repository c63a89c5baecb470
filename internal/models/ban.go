package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxReasonLength bounds the stored reason, in runes.
const MaxReasonLength = 512

// Ban is the live ban of one user in one guild. At most one row exists per
// (guild_id, user_id); an unban deletes it.
type Ban struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	GuildID  int64     `gorm:"not null;uniqueIndex:idx_bans_guild_user,priority:1"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_bans_guild_user,priority:2;index"`
	BannedAt time.Time `gorm:"not null"`
	BannedBy *int64
	Reason   *string `gorm:"size:512"`
	// RefBanID points at the ban whose alert led to this one. Referenced rows
	// may have been deleted since, so there is no foreign key.
	RefBanID *uint `gorm:"index"`
}

// TableName overrides the table name
func (Ban) TableName() string {
	return "bans"
}

// ReasonText returns the reason or an empty string.
func (b *Ban) ReasonText() string {
	if b == nil || b.Reason == nil {
		return ""
	}
	return *b.Reason
}

// BanInput carries everything RecordBan needs. Zero BannedAt means now.
type BanInput struct {
	GuildID  int64
	UserID   int64
	Reason   string
	BannedAt time.Time
	BannedBy *int64
	RefBanID *uint
}

// NormalizeReason trims the reason and cuts it to MaxReasonLength runes.
// An empty reason is stored as NULL.
func NormalizeReason(reason string) *string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		runes := []rune(reason)
		reason = string(runes[:MaxReasonLength])
	}
	return &reason
}
