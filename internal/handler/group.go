package handler

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

// handleMyChatMemberUpdate follows the bot being added to and removed from chats
func (h *Handler) handleMyChatMemberUpdate(ctx *th.Context, update telego.Update) error {
	if update.MyChatMember == nil {
		return nil
	}
	chat := update.MyChatMember.Chat
	newMember := update.MyChatMember.NewChatMember

	// any chat may be an alert chat, its cached state is now stale
	h.platform.Forget(chat.ID)

	if chat.Type != telego.ChatTypeGroup && chat.Type != telego.ChatTypeSupergroup {
		return nil
	}

	switch newMember.MemberStatus() {
	case telego.MemberStatusLeft, telego.MemberStatusBanned:
		h.log.Infow("removed from group", "chat", chat.ID, "title", chat.Title, "by", update.MyChatMember.From.ID)
		if err := h.guilds.OnBotLeft(ctx.Context(), chat.ID); err != nil {
			countError()
			h.log.Errorw("cannot record leaving group", "chat", chat.ID, "error", err)
		}
		return nil
	}

	if !newMember.MemberIsMember() {
		return nil
	}

	allowed, err := h.guilds.OnBotJoined(ctx.Context(), chat.ID, chat.Title)
	if err != nil {
		countError()
		h.log.Errorw("cannot record joining group", "chat", chat.ID, "error", err)
		return nil
	}
	if allowed {
		return nil
	}

	h.log.Warnw("leaving group that is not whitelisted", "chat", chat.ID, "title", chat.Title)
	if err := h.bot.LeaveChat(ctx.Context(), &telego.LeaveChatParams{ChatID: telego.ChatID{ID: chat.ID}}); err != nil {
		h.log.Errorw("cannot leave group", "chat", chat.ID, "error", err)
	}
	return nil
}
