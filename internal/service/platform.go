package service

import (
	"context"

	"tg-banshare/internal/models"
)

// BanStore is the part of the ban repository the engine uses.
type BanStore interface {
	RecordBan(ctx context.Context, in models.BanInput) (uint, error)
	RemoveBan(ctx context.Context, guildID, userID int64) (*models.Ban, error)
	GetBan(ctx context.Context, guildID, userID int64) (*models.Ban, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// GuildStore is the read side of the guild registry.
type GuildStore interface {
	GetGuild(ctx context.Context, guildID int64) (*models.Guild, error)
	ListGuilds(ctx context.Context) ([]*models.Guild, error)
}

// Directory answers questions about live platform state. Lookups are best
// effort and may fail or time out.
type Directory interface {
	// CheckAlertChannel returns nil if the bot can post into the chat, an
	// error wrapping ErrChannelUnusable if it cannot, or any other error if
	// the check itself failed.
	CheckAlertChannel(ctx context.Context, chatID int64) error
	IsMember(ctx context.Context, guildID, userID int64) (bool, error)
	IsBanned(ctx context.Context, guildID, userID int64) (bool, error)
}

// Enforcer performs real bans. Authorization failures wrap ErrPermission.
type Enforcer interface {
	Ban(ctx context.Context, guildID, userID int64, reason string) error
	Unban(ctx context.Context, guildID, userID int64, reason string) error
}

// AlertSender delivers a rendered alert with its confirmation control.
type AlertSender interface {
	SendAlert(ctx context.Context, recipient *models.Guild, chatID int64, alert Alert) error
}

// Control is the interactive element an alert was delivered with. Disable
// swaps it for an inert one; label is a translation key such as
// "control_banned".
type Control interface {
	Disable(ctx context.Context, label string) error
}
