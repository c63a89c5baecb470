package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/mymmrac/telego"

	"tg-banshare/internal/models"
	"tg-banshare/internal/service"
)

// doneCallback is the callback data of a disabled control.
const doneCallback = "done"

// RenderAlert builds the HTML text and keyboard of an alert in lang.
func RenderAlert(lang string, alert service.Alert) (string, *telego.InlineKeyboardMarkup) {
	t := func(key string) string { return models.GetTranslation(lang, key) }

	titleKey, buttonKey := "alert_ban_title", "alert_ban_button"
	if alert.Kind == service.ActionUnban {
		titleKey, buttonKey = "alert_unban_title", "alert_unban_button"
	}

	source := alert.SourceGuildName
	if source == "" {
		source = fmt.Sprintf("%d", alert.SourceGuildID)
	}

	lines := []string{
		fmt.Sprintf(t(titleKey), html.EscapeString(source)),
		"",
		fmt.Sprintf(t("alert_user"), userMention(alert.UserID)),
	}
	if alert.AccountAge != nil {
		lines = append(lines, fmt.Sprintf(t("alert_account_age"), models.FormatDuration(*alert.AccountAge)))
	}
	if reason := strings.TrimSpace(alert.Reason); reason != "" {
		lines = append(lines, fmt.Sprintf(t("alert_reason"), html.EscapeString(reason)))
	}
	if alert.InGuild != nil {
		answer := t("no")
		if *alert.InGuild {
			answer = t("yes")
		}
		lines = append(lines, fmt.Sprintf(t("alert_in_group"), answer))
	}
	if alert.SourceBannedFor != nil {
		lines = append(lines, fmt.Sprintf(t("alert_ban_lasted"), models.FormatDuration(*alert.SourceBannedFor)))
	}
	if alert.BannedHereFor != nil {
		lines = append(lines, fmt.Sprintf(t("alert_banned_here_for"), models.FormatDuration(*alert.BannedHereFor)))
	}

	markup := &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{
			{{Text: t(buttonKey), CallbackData: alert.Token}},
		},
	}
	return strings.Join(lines, "\n"), markup
}

// inertMarkup replaces a used control.
func inertMarkup(lang, label string) *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{
			{{Text: models.GetTranslation(lang, label), CallbackData: doneCallback}},
		},
	}
}

func userMention(userID int64) string {
	return fmt.Sprintf("<a href=\"tg://user?id=%d\">%d</a>", userID, userID)
}
