package handler

import (
	"context"
	"strings"

	"github.com/mymmrac/telego"
)

// adminLister is satisfied by *telego.Bot.
type adminLister interface {
	GetChatAdministrators(ctx context.Context, params *telego.GetChatAdministratorsParams) ([]telego.ChatMember, error)
}

// isUserAdmin checks if a user is an admin in a chat
func isUserAdmin(ctx context.Context, bot adminLister, chatID int64, userID int64) (bool, error) {
	admins, err := bot.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{
		ChatID: telego.ChatID{ID: chatID},
	})
	if err != nil {
		return false, err
	}

	for _, admin := range admins {
		if admin.MemberUser().ID == userID {
			return true, nil
		}
	}

	return false, nil
}

// parseCommand splits "/name@bot args" into its parts. Commands addressed to
// another bot are rejected.
func parseCommand(text, botUsername string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	name, target, addressed := strings.Cut(head, "@")
	if addressed && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(rest), true
}

// mayDirectAlertsTo reports whether userID may have alerts delivered to
// target: their own private chat, or a chat they administer.
func mayDirectAlertsTo(ctx context.Context, bot adminLister, target, userID int64) (bool, error) {
	// positive ids are private chats with users
	if target > 0 {
		return target == userID, nil
	}
	return isUserAdmin(ctx, bot, target, userID)
}
