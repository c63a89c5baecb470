package models

import (
	"fmt"
	"html"
	"time"
)

// Language constants
const (
	LangSimplifiedChinese  = "zh_CN"
	LangTraditionalChinese = "zh_TW"
	LangEnglish            = "en"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangEnglish: {
		"help_title":            "BanShare Bot Help",
		"help_description":      "This bot shares bans between the groups that use it. When a user is banned in one group, the other groups receive an alert and can ban them with one click.",
		"help_cmd_help":         "/help - Show this help message",
		"help_cmd_settings":     "/settings - Show the sharing settings of this group",
		"help_cmd_alerts_here":  "/alerts_here - Deliver alerts for this group into this chat",
		"help_cmd_alerts_off":   "/alerts_off - Stop receiving alerts",
		"help_cmd_broadcast":    "/broadcast on|off - Share bans made in this group with other groups",
		"help_cmd_language":     "/language en|zh_CN|zh_TW - Set the bot language",
		"help_note":             "Note: only group administrators can change settings.",
		"cmd_desc_help":         "Show help",
		"cmd_desc_settings":     "Show sharing settings",
		"cmd_desc_alerts_here":  "Receive alerts in this chat",
		"cmd_desc_alerts_off":   "Stop receiving alerts",
		"cmd_desc_broadcast":    "Share bans with other groups",
		"cmd_desc_language":     "Set the bot language",
		"settings_title":        "Settings of %s",
		"settings_alert_chat":   "- Alert chat: %s",
		"settings_alert_none":   "not set",
		"settings_broadcast":    "- Share bans: %s",
		"settings_language":     "- Language: %s",
		"enabled":               "✅ enabled",
		"disabled":              "❌ disabled",
		"yes":                   "yes",
		"no":                    "no",
		"user_not_admin":        "You are not an administrator of this group.",
		"group_not_registered":  "This group is not registered for ban sharing.",
		"group_only":            "This command only works in groups.",
		"alerts_here_set":       "Alerts for this group will be delivered here.",
		"alerts_off_set":        "Alerts for this group are turned off.",
		"alert_chat_taken":      "This chat already receives alerts for another group.",
		"alert_chat_unusable":   "I cannot post into that chat. Add me there first.",
		"alert_chat_not_admin":  "You can only send alerts to a chat you administer or to your private chat with me.",
		"alerts_here_usage":     "Usage: /alerts_here [chat_id]",
		"command_failed":        "Something went wrong, please try again later.",
		"broadcast_usage":       "Usage: /broadcast on|off",
		"broadcast_updated":     "Sharing bans with other groups: %s",
		"language_usage":        "Usage: /language en|zh_CN|zh_TW",
		"language_updated":      "Bot language updated to: %s",
		"alert_ban_title":       "⛔ <b>User banned in %s</b>",
		"alert_unban_title":     "✅ <b>User unbanned in %s</b>",
		"alert_user":            "<b>User</b>: %s",
		"alert_account_age":     "<b>Account age</b>: %s",
		"alert_reason":          "<b>Reason</b>: %s",
		"alert_in_group":        "<b>Member of this group</b>: %s",
		"alert_banned_here_for": "<b>Banned here for</b>: %s",
		"alert_ban_lasted":      "<b>Ban lasted</b>: %s",
		"alert_ban_button":      "Ban here",
		"alert_unban_button":    "Unban here",
		"control_banned":        "Banned",
		"control_unbanned":      "Unbanned",
		"control_already":       "Already handled",
		"confirm_done_ban":      "✅ The user was banned.",
		"confirm_done_unban":    "✅ The user was unbanned.",
		"confirm_already":       "Nothing to do, this was already done.",
		"confirm_in_progress":   "This alert is already being handled.",
		"confirm_unknown":       "This button is no longer valid.",
		"confirm_stale":         "This alert was posted before this chat became the alert chat of this group. Nothing was changed.",
		"confirm_permission":    "I am not allowed to do that in this group. Give me the ban users right and try again.",
		"confirm_failed":        "Telegram rejected the action, nothing was changed. Try again later.",
		"confirm_lookup_failed": "Could not check the current state of the user, nothing was changed. Try again.",
		"confirm_bookkeeping":   "⚠️ The action was carried out in the group, but recording it failed. Click the button again to retry the recording only.",
		"not_alert_chat":        "This chat is not the alert chat of any registered group.",
	},
	LangSimplifiedChinese: {
		"help_title":            "BanShare Bot 帮助",
		"help_description":      "此机器人在使用它的群组之间共享封禁记录。当用户在一个群组被封禁时，其他群组会收到提醒，并可一键封禁。",
		"help_cmd_help":         "/help - 显示此帮助消息",
		"help_cmd_settings":     "/settings - 显示本群的共享设置",
		"help_cmd_alerts_here":  "/alerts_here - 将本群的提醒发送到当前聊天",
		"help_cmd_alerts_off":   "/alerts_off - 停止接收提醒",
		"help_cmd_broadcast":    "/broadcast on|off - 向其他群组共享本群的封禁",
		"help_cmd_language":     "/language en|zh_CN|zh_TW - 设置机器人语言",
		"help_note":             "注意: 只有群组管理员才能更改设置。",
		"cmd_desc_help":         "显示帮助信息",
		"cmd_desc_settings":     "查看共享设置",
		"cmd_desc_alerts_here":  "在此聊天接收提醒",
		"cmd_desc_alerts_off":   "停止接收提醒",
		"cmd_desc_broadcast":    "向其他群组共享封禁",
		"cmd_desc_language":     "设置机器人语言",
		"settings_title":        "%s 的设置",
		"settings_alert_chat":   "- 提醒聊天: %s",
		"settings_alert_none":   "未设置",
		"settings_broadcast":    "- 共享封禁: %s",
		"settings_language":     "- 语言: %s",
		"enabled":               "✅ 启用",
		"disabled":              "❌ 禁用",
		"yes":                   "是",
		"no":                    "否",
		"user_not_admin":        "您不是群组管理员，无法使用该指令",
		"group_not_registered":  "本群未登记封禁共享。",
		"group_only":            "该指令只能在群组中使用。",
		"alerts_here_set":       "本群的提醒将发送到这里。",
		"alerts_off_set":        "已关闭本群的提醒。",
		"alert_chat_taken":      "该聊天已在接收另一个群组的提醒。",
		"alert_chat_unusable":   "我无法在该聊天中发言，请先将我加入。",
		"alert_chat_not_admin":  "只能将提醒发送到您管理的聊天，或您与我的私聊。",
		"alerts_here_usage":     "用法: /alerts_here [chat_id]",
		"command_failed":        "操作失败，请稍后再试。",
		"broadcast_usage":       "用法: /broadcast on|off",
		"broadcast_updated":     "向其他群组共享封禁: %s",
		"language_usage":        "用法: /language en|zh_CN|zh_TW",
		"language_updated":      "机器人语言已更新为: %s",
		"alert_ban_title":       "⛔ <b>用户在 %s 被封禁</b>",
		"alert_unban_title":     "✅ <b>用户在 %s 被解封</b>",
		"alert_user":            "<b>用户</b>: %s",
		"alert_account_age":     "<b>账号年龄</b>: %s",
		"alert_reason":          "<b>原因</b>: %s",
		"alert_in_group":        "<b>是否本群成员</b>: %s",
		"alert_banned_here_for": "<b>在本群已封禁</b>: %s",
		"alert_ban_lasted":      "<b>原封禁时长</b>: %s",
		"alert_ban_button":      "在本群封禁",
		"alert_unban_button":    "在本群解封",
		"control_banned":        "已封禁",
		"control_unbanned":      "已解封",
		"control_already":       "已处理",
		"confirm_done_ban":      "✅ 用户已被封禁。",
		"confirm_done_unban":    "✅ 用户已被解封。",
		"confirm_already":       "无需操作，此前已处理。",
		"confirm_in_progress":   "该提醒正在处理中。",
		"confirm_unknown":       "此按钮已失效。",
		"confirm_stale":         "该提醒发布于本聊天成为本群组提醒聊天之前，未做任何更改。",
		"confirm_permission":    "我在本群没有执行此操作的权限。请授予我封禁用户的权限后重试。",
		"confirm_failed":        "Telegram 拒绝了此操作，未做任何更改。请稍后再试。",
		"confirm_lookup_failed": "无法确认该用户的当前状态，未做任何更改。请重试。",
		"confirm_bookkeeping":   "⚠️ 操作已在群组中生效，但记录失败。请再次点击按钮，仅重试记录。",
		"not_alert_chat":        "此聊天不是任何已登记群组的提醒聊天。",
	},
	LangTraditionalChinese: {
		"help_title":            "BanShare Bot 幫助",
		"help_description":      "此機器人在使用它的群組之間共享封禁記錄。當用戶在一個群組被封禁時，其他群組會收到提醒，並可一鍵封禁。",
		"help_cmd_help":         "/help - 顯示此幫助消息",
		"help_cmd_settings":     "/settings - 顯示本群的共享設置",
		"help_cmd_alerts_here":  "/alerts_here - 將本群的提醒發送到當前聊天",
		"help_cmd_alerts_off":   "/alerts_off - 停止接收提醒",
		"help_cmd_broadcast":    "/broadcast on|off - 向其他群組共享本群的封禁",
		"help_cmd_language":     "/language en|zh_CN|zh_TW - 設置機器人語言",
		"help_note":             "注意: 只有群組管理員才能更改設置。",
		"cmd_desc_help":         "顯示幫助信息",
		"cmd_desc_settings":     "查看共享設置",
		"cmd_desc_alerts_here":  "在此聊天接收提醒",
		"cmd_desc_alerts_off":   "停止接收提醒",
		"cmd_desc_broadcast":    "向其他群組共享封禁",
		"cmd_desc_language":     "設置機器人語言",
		"settings_title":        "%s 的設置",
		"settings_alert_chat":   "- 提醒聊天: %s",
		"settings_alert_none":   "未設置",
		"settings_broadcast":    "- 共享封禁: %s",
		"settings_language":     "- 語言: %s",
		"enabled":               "✅ 啟用",
		"disabled":              "❌ 禁用",
		"yes":                   "是",
		"no":                    "否",
		"user_not_admin":        "您不是群組管理員，無法使用該指令",
		"group_not_registered":  "本群未登記封禁共享。",
		"group_only":            "該指令只能在群組中使用。",
		"alerts_here_set":       "本群的提醒將發送到這裡。",
		"alerts_off_set":        "已關閉本群的提醒。",
		"alert_chat_taken":      "該聊天已在接收另一個群組的提醒。",
		"alert_chat_unusable":   "我無法在該聊天中發言，請先將我加入。",
		"alert_chat_not_admin":  "只能將提醒發送到您管理的聊天，或您與我的私聊。",
		"alerts_here_usage":     "用法: /alerts_here [chat_id]",
		"command_failed":        "操作失敗，請稍後再試。",
		"broadcast_usage":       "用法: /broadcast on|off",
		"broadcast_updated":     "向其他群組共享封禁: %s",
		"language_usage":        "用法: /language en|zh_CN|zh_TW",
		"language_updated":      "機器人語言已更新為: %s",
		"alert_ban_title":       "⛔ <b>用戶在 %s 被封禁</b>",
		"alert_unban_title":     "✅ <b>用戶在 %s 被解封</b>",
		"alert_user":            "<b>用戶</b>: %s",
		"alert_account_age":     "<b>賬號年齡</b>: %s",
		"alert_reason":          "<b>原因</b>: %s",
		"alert_in_group":        "<b>是否本群成員</b>: %s",
		"alert_banned_here_for": "<b>在本群已封禁</b>: %s",
		"alert_ban_lasted":      "<b>原封禁時長</b>: %s",
		"alert_ban_button":      "在本群封禁",
		"alert_unban_button":    "在本群解封",
		"control_banned":        "已封禁",
		"control_unbanned":      "已解封",
		"control_already":       "已處理",
		"confirm_done_ban":      "✅ 用戶已被封禁。",
		"confirm_done_unban":    "✅ 用戶已被解封。",
		"confirm_already":       "無需操作，此前已處理。",
		"confirm_in_progress":   "該提醒正在處理中。",
		"confirm_unknown":       "此按鈕已失效。",
		"confirm_stale":         "該提醒發布於本聊天成為本群組提醒聊天之前，未做任何更改。",
		"confirm_permission":    "我在本群沒有執行此操作的權限。請授予我封禁用戶的權限後重試。",
		"confirm_failed":        "Telegram 拒絕了此操作，未做任何更改。請稍後再試。",
		"confirm_lookup_failed": "無法確認該用戶的當前狀態，未做任何更改。請重試。",
		"confirm_bookkeeping":   "⚠️ 操作已在群組中生效，但記錄失敗。請再次點擊按鈕，僅重試記錄。",
		"not_alert_chat":        "此聊天不是任何已登記群組的提醒聊天。",
	},
}

// IsSupportedLanguage reports whether a translation table exists for lang.
func IsSupportedLanguage(lang string) bool {
	_, ok := Translations[lang]
	return ok
}

// GetTranslation returns the text for key, falling back to English and then
// to the key itself.
func GetTranslation(lang, key string) string {
	if t, ok := Translations[lang]; ok {
		if text, ok := t[key]; ok {
			return text
		}
	}
	if text, ok := Translations[LangEnglish][key]; ok {
		return text
	}
	return key
}

// FormatDuration renders d with its two most significant units, e.g. "3d 4h".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days >= 365:
		return fmt.Sprintf("%dy %dd", days/365, days%365)
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
