package models

import (
	"fmt"
	"time"
)

// Guild is a whitelisted Telegram group. The row exists from the moment the
// group is whitelisted; Name and JoinedAt are only set while the bot is in it.
type Guild struct {
	ID             int64 `gorm:"primaryKey;autoIncrement:false"`
	Name           string
	JoinedAt       *time.Time
	LeftAt         *time.Time
	AlertChannelID *int64 `gorm:"uniqueIndex"`
	// AlertChannelSince is when AlertChannelID was last pointed at a new chat.
	AlertChannelSince *time.Time
	BroadcastEnabled  bool   `gorm:"not null;default:false"`
	Language          string `gorm:"size:8;default:en"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the table name
func (Guild) TableName() string {
	return "guilds"
}

// Joined reports whether the bot is currently a member of the guild.
func (g *Guild) Joined() bool {
	return g.JoinedAt != nil
}

// AlertPredates reports whether something posted at sentAt was posted before
// the current alert chat was assigned, i.e. while the chat served someone else.
func (g *Guild) AlertPredates(sentAt time.Time) bool {
	if g.AlertChannelSince == nil || sentAt.IsZero() {
		return false
	}
	return sentAt.Before(g.AlertChannelSince.Truncate(time.Second))
}

// DisplayName falls back to the numeric id while the name is unknown.
func (g *Guild) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("%d", g.ID)
}

// GetLinkedGroupName renders the group as an HTML link
func (g *Guild) GetLinkedGroupName() string {
	id := g.ID
	// supergroup ids carry a -100 prefix that t.me/c links drop
	if id < -1000000000000 {
		id = -id - 1000000000000
	} else if id < 0 {
		id = -id
	}
	return fmt.Sprintf("<a href=\"https://t.me/c/%d\">%s</a>", id, escapeHTML(g.DisplayName()))
}
