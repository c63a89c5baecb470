package service

import (
	"strings"

	"tg-banshare/internal/models"
)

// Classify decides whether an event was caused by the bot itself and whether
// its source guild shares bans. Self-origin is recognized by the reason
// starting with marker; an outside reason using the same text is
// indistinguishable from ours.
func Classify(event ModerationEvent, source *models.Guild, marker string) Classification {
	return Classification{
		SelfOriginated:    marker != "" && strings.HasPrefix(event.Reason, marker),
		BroadcastEligible: source != nil && source.BroadcastEnabled,
	}
}

// SelfReason builds the reason attached to actions the bot performs.
func SelfReason(marker, detail string) string {
	return marker + ": " + detail
}
