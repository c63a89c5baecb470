package handler

import (
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-banshare/internal/models"
	"tg-banshare/internal/service"
)

// doneCallback is what a disabled alert button sends.
const doneCallback = "done"

// handleCallbackQuery processes the buttons of alerts. The guild acted on is
// the one whose alerts are delivered to the chat the button was pressed in.
func (h *Handler) handleCallbackQuery(ctx *th.Context, query telego.CallbackQuery) error {
	if query.Data == "" || query.Data == doneCallback {
		return h.answer(ctx, query, "", false)
	}
	if query.Message == nil {
		return h.answer(ctx, query, models.GetTranslation(models.LangEnglish, "confirm_unknown"), false)
	}

	chatID := query.Message.GetChat().ID
	guild, err := h.guilds.ForAlertChat(ctx.Context(), chatID)
	if err != nil {
		countError()
		h.log.Errorw("cannot resolve alert chat", "chat", chatID, "error", err)
		return h.answer(ctx, query, models.GetTranslation(models.LangEnglish, "confirm_lookup_failed"), true)
	}
	if guild == nil {
		return h.answer(ctx, query, models.GetTranslation(models.LangEnglish, "not_alert_chat"), true)
	}
	lang := guild.Language

	if date := query.Message.GetDate(); date > 0 && guild.AlertPredates(time.Unix(date, 0)) {
		h.log.Infow("ignoring alert posted before the alert chat was assigned", "guild", guild.ID, "chat", chatID)
		return h.answer(ctx, query, models.GetTranslation(lang, "confirm_stale"), true)
	}

	isAdmin, err := isUserAdmin(ctx.Context(), h.bot, guild.ID, query.From.ID)
	if err != nil || !isAdmin {
		return h.answer(ctx, query, models.GetTranslation(lang, "user_not_admin"), true)
	}

	res := h.confirmer.HandleConfirmation(ctx.Context(), query.Data,
		service.GuildContext{GuildID: guild.ID, ActorID: query.From.ID},
		h.platform.Control(chatID, query.Message.GetMessageID(), lang))

	h.log.Infow("confirmation", "guild", guild.ID, "actor", query.From.ID, "data", query.Data, "outcome", res.Outcome)
	return h.answer(ctx, query, outcomeText(lang, res), outcomeIsFailure(res.Outcome))
}

func (h *Handler) answer(ctx *th.Context, query telego.CallbackQuery, text string, alert bool) error {
	err := h.bot.AnswerCallbackQuery(ctx.Context(), &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.log.Warnw("cannot answer callback query", "error", err)
	}
	return nil
}

// outcomeText is the answer shown to the administrator who pressed a button.
func outcomeText(lang string, res service.ConfirmResult) string {
	var key string
	switch res.Outcome {
	case service.OutcomeDone:
		key = "confirm_done_ban"
		if res.Token.Kind == service.ActionUnban {
			key = "confirm_done_unban"
		}
	case service.OutcomeAlreadyActioned:
		key = "confirm_already"
	case service.OutcomeInProgress:
		key = "confirm_in_progress"
	case service.OutcomeLookupFailed:
		key = "confirm_lookup_failed"
	case service.OutcomePermission:
		key = "confirm_permission"
	case service.OutcomeEnforcement:
		key = "confirm_failed"
	case service.OutcomePersistence:
		key = "confirm_bookkeeping"
	default:
		key = "confirm_unknown"
	}
	return models.GetTranslation(lang, key)
}

func outcomeIsFailure(o service.Outcome) bool {
	switch o {
	case service.OutcomePermission, service.OutcomeEnforcement, service.OutcomePersistence, service.OutcomeLookupFailed:
		return true
	}
	return false
}
