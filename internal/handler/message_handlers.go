package handler

import (
	"errors"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-banshare/internal/bot"
	"tg-banshare/internal/service"
)

// botEnforcedDetail is the reason of a bot-issued action the ledger no
// longer remembers, e.g. after a restart.
const botEnforcedDetail = "Enforced by bot"

// handleChatMemberUpdate records bans and unbans and starts their propagation
func (h *Handler) handleChatMemberUpdate(ctx *th.Context, update telego.Update) error {
	if update.ChatMember == nil {
		return nil
	}

	kind, ev, ok := moderationEvent(*update.ChatMember, h.botID, h.reasons, h.bans.Marker())
	if !ok {
		return nil
	}

	var err error
	if kind == service.ActionBan {
		_, err = h.bans.HandleBanEvent(ctx.Context(), ev)
	} else {
		_, err = h.bans.HandleUnbanEvent(ctx.Context(), ev)
	}
	switch {
	case errors.Is(err, service.ErrGuildNotRegistered):
		h.log.Debugw("ignoring event in unregistered chat", "chat", ev.GuildID, "kind", kind)
	case err != nil:
		countError()
		h.log.Errorw("cannot record moderation event", "kind", kind, "chat", ev.GuildID, "user", ev.UserID, "error", err)
	}
	return nil
}

// banTransition reports whether a member status change is a ban or an unban.
// Only permanent bans count: temporary ones lift themselves without an
// update, so they are neither recorded nor shared.
func banTransition(oldMember, newMember telego.ChatMember) (service.ActionKind, bool) {
	wasBanned := permanentBan(oldMember)
	isBanned := permanentBan(newMember)

	switch {
	case isBanned && !wasBanned:
		return service.ActionBan, true
	case wasBanned && !isBanned:
		return service.ActionUnban, true
	}
	return "", false
}

func permanentBan(m telego.ChatMember) bool {
	if m == nil || m.MemberStatus() != telego.MemberStatusBanned {
		return false
	}
	banned, ok := m.(*telego.ChatMemberBanned)
	return !ok || banned.UntilDate == 0
}

// moderationEvent converts a chat_member update into a moderation event.
// Actions the bot carried out itself get the reason it issued them with.
func moderationEvent(update telego.ChatMemberUpdated, botID int64, reasons *bot.ReasonLedger, marker string) (service.ActionKind, service.ModerationEvent, bool) {
	kind, ok := banTransition(update.OldChatMember, update.NewChatMember)
	if !ok {
		return "", service.ModerationEvent{}, false
	}

	user := update.NewChatMember.MemberUser()
	if user.ID == botID {
		return "", service.ModerationEvent{}, false
	}

	ev := service.ModerationEvent{
		GuildID:   update.Chat.ID,
		UserID:    user.ID,
		Timestamp: time.Unix(int64(update.Date), 0),
	}

	if update.From.ID == botID {
		reason, found := reasons.Take(update.Chat.ID, user.ID)
		if !found {
			reason = service.SelfReason(marker, botEnforcedDetail)
		}
		ev.Reason = reason
	} else {
		actor := update.From.ID
		ev.ActorID = &actor
	}
	return kind, ev, true
}
