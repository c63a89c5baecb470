package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-banshare/internal/models"
	"tg-banshare/internal/storage"
)

// handleCommand dispatches the bot's slash commands
func (h *Handler) handleCommand(ctx *th.Context, message telego.Message) error {
	name, args, ok := parseCommand(message.Text, h.botUsername)
	if !ok {
		return nil
	}

	if name == "help" {
		return h.sendHelpMessage(ctx, message)
	}
	switch name {
	case "settings", "alerts_here", "alerts_off", "broadcast", "language":
	default:
		return nil
	}

	lang := models.LangEnglish
	if message.Chat.Type != telego.ChatTypeGroup && message.Chat.Type != telego.ChatTypeSupergroup {
		return h.reply(ctx, message, models.GetTranslation(lang, "group_only"))
	}

	guild, err := h.guilds.Get(ctx.Context(), message.Chat.ID)
	if err != nil {
		countError()
		h.log.Errorw("cannot load group", "chat", message.Chat.ID, "error", err)
		return nil
	}
	if guild == nil {
		return h.reply(ctx, message, models.GetTranslation(lang, "group_not_registered"))
	}
	lang = guild.Language

	if message.From == nil {
		return nil
	}
	isAdmin, err := isUserAdmin(ctx.Context(), h.bot, message.Chat.ID, message.From.ID)
	if err != nil || !isAdmin {
		return h.reply(ctx, message, models.GetTranslation(lang, "user_not_admin"))
	}

	switch name {
	case "settings":
		return h.reply(ctx, message, settingsText(guild))
	case "alerts_here":
		return h.handleAlertsHereCommand(ctx, message, guild, args)
	case "alerts_off":
		if err := h.guilds.SetAlertChannel(ctx.Context(), guild.ID, nil); err != nil {
			return h.commandFailed(ctx, message, lang, err)
		}
		return h.reply(ctx, message, models.GetTranslation(lang, "alerts_off_set"))
	case "broadcast":
		return h.handleBroadcastCommand(ctx, message, guild, args)
	case "language":
		return h.handleLanguageCommand(ctx, message, guild, args)
	}
	return nil
}

// sendHelpMessage sends help information
func (h *Handler) sendHelpMessage(ctx *th.Context, message telego.Message) error {
	lang := models.LangEnglish
	if message.Chat.Type != telego.ChatTypePrivate {
		if guild, err := h.guilds.Get(ctx.Context(), message.Chat.ID); err == nil && guild != nil {
			lang = guild.Language
		}
	}
	return h.reply(ctx, message, helpText(lang))
}

func helpText(lang string) string {
	t := func(key string) string { return models.GetTranslation(lang, key) }
	return fmt.Sprintf("<b>%s</b>\n\n%s\n\n%s\n%s\n%s\n%s\n%s\n%s\n\n<i>%s</i>",
		t("help_title"),
		t("help_description"),
		t("help_cmd_help"),
		t("help_cmd_settings"),
		t("help_cmd_alerts_here"),
		t("help_cmd_alerts_off"),
		t("help_cmd_broadcast"),
		t("help_cmd_language"),
		t("help_note"),
	)
}

func settingsText(guild *models.Guild) string {
	t := func(key string) string { return models.GetTranslation(guild.Language, key) }

	alertChat := t("settings_alert_none")
	if guild.AlertChannelID != nil {
		alertChat = fmt.Sprintf("<code>%d</code>", *guild.AlertChannelID)
	}
	broadcast := t("disabled")
	if guild.BroadcastEnabled {
		broadcast = t("enabled")
	}

	return strings.Join([]string{
		fmt.Sprintf("<b>"+t("settings_title")+"</b>", guild.GetLinkedGroupName()),
		fmt.Sprintf(t("settings_alert_chat"), alertChat),
		fmt.Sprintf(t("settings_broadcast"), broadcast),
		fmt.Sprintf(t("settings_language"), guild.Language),
	}, "\n")
}

// handleAlertsHereCommand points the group's alerts at the group itself, or
// at the chat whose id is given as argument.
func (h *Handler) handleAlertsHereCommand(ctx *th.Context, message telego.Message, guild *models.Guild, args string) error {
	lang := guild.Language
	target := message.Chat.ID
	if args != "" {
		id, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			return h.reply(ctx, message, models.GetTranslation(lang, "alerts_here_usage"))
		}
		target = id
	}

	if target != message.Chat.ID {
		allowed, err := mayDirectAlertsTo(ctx.Context(), h.bot, target, message.From.ID)
		if err != nil || !allowed {
			h.log.Infow("rejected alert chat of another owner", "guild", guild.ID, "chat", target, "user", message.From.ID, "error", err)
			return h.reply(ctx, message, models.GetTranslation(lang, "alert_chat_not_admin"))
		}
		h.platform.Forget(target)
		if err := h.platform.CheckAlertChannel(ctx.Context(), target); err != nil {
			h.log.Infow("rejected alert chat", "guild", guild.ID, "chat", target, "error", err)
			return h.reply(ctx, message, models.GetTranslation(lang, "alert_chat_unusable"))
		}
	}

	if err := h.guilds.SetAlertChannel(ctx.Context(), guild.ID, &target); err != nil {
		if errors.Is(err, storage.ErrAlertChannelTaken) {
			return h.reply(ctx, message, models.GetTranslation(lang, "alert_chat_taken"))
		}
		return h.commandFailed(ctx, message, lang, err)
	}
	return h.reply(ctx, message, models.GetTranslation(lang, "alerts_here_set"))
}

func (h *Handler) handleBroadcastCommand(ctx *th.Context, message telego.Message, guild *models.Guild, args string) error {
	lang := guild.Language
	var enabled bool
	switch strings.ToLower(args) {
	case "on":
		enabled = true
	case "off":
	default:
		return h.reply(ctx, message, models.GetTranslation(lang, "broadcast_usage"))
	}

	if err := h.guilds.SetBroadcast(ctx.Context(), guild.ID, enabled); err != nil {
		return h.commandFailed(ctx, message, lang, err)
	}
	state := models.GetTranslation(lang, "disabled")
	if enabled {
		state = models.GetTranslation(lang, "enabled")
	}
	return h.reply(ctx, message, fmt.Sprintf(models.GetTranslation(lang, "broadcast_updated"), state))
}

func (h *Handler) handleLanguageCommand(ctx *th.Context, message telego.Message, guild *models.Guild, args string) error {
	if !models.IsSupportedLanguage(args) {
		return h.reply(ctx, message, models.GetTranslation(guild.Language, "language_usage"))
	}
	if err := h.guilds.SetLanguage(ctx.Context(), guild.ID, args); err != nil {
		return h.commandFailed(ctx, message, guild.Language, err)
	}
	return h.reply(ctx, message, fmt.Sprintf(models.GetTranslation(args, "language_updated"), args))
}

func (h *Handler) commandFailed(ctx *th.Context, message telego.Message, lang string, err error) error {
	countError()
	h.log.Errorw("command failed", "chat", message.Chat.ID, "text", message.Text, "error", err)
	return h.reply(ctx, message, models.GetTranslation(lang, "command_failed"))
}

func (h *Handler) reply(ctx *th.Context, message telego.Message, text string) error {
	_, err := h.bot.SendMessage(ctx.Context(), &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: message.Chat.ID},
		Text:            text,
		ParseMode:       "HTML",
		ReplyParameters: &telego.ReplyParameters{MessageID: message.MessageID, AllowSendingWithoutReply: true},
	})
	if err != nil {
		h.log.Warnw("cannot reply", "chat", message.Chat.ID, "error", err)
	}
	return nil
}
