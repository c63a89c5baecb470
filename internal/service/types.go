package service

import (
	"time"

	"tg-banshare/internal/models"
)

type ActionKind string

const (
	ActionBan   ActionKind = "ban"
	ActionUnban ActionKind = "unban"
)

// ModerationEvent is a ban or unban observed in a guild.
type ModerationEvent struct {
	GuildID   int64
	UserID    int64
	Reason    string
	Timestamp time.Time
	// ActorID is the administrator who acted, when the platform reports one.
	ActorID *int64
}

// Classification is what the classifier derives from an event.
type Classification struct {
	SelfOriginated    bool
	BroadcastEligible bool
}

// ClassifiedAction is a recorded moderation event ready for propagation.
type ClassifiedAction struct {
	Kind  ActionKind
	Event ModerationEvent
	Classification

	SourceName string
	// BanID is the recorded ban for ActionBan.
	BanID uint
	// Removed is the deleted row for ActionUnban, nil if the user was not tracked.
	Removed *models.Ban
	User    *models.User
}

// Alert is everything a recipient needs to decide on an action.
type Alert struct {
	Kind            ActionKind
	SourceGuildID   int64
	SourceGuildName string
	UserID          int64
	Reason          string
	// AccountAge is the age of the account when the action happened.
	AccountAge *time.Duration
	// InGuild is nil when membership could not be determined.
	InGuild *bool
	// BannedHereFor is how long the recipient has had the user banned; unban only.
	BannedHereFor *time.Duration
	// SourceBannedFor is how long the lifted ban lasted in the source guild.
	SourceBannedFor *time.Duration
	Token         string
}
