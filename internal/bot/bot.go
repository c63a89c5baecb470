package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-banshare/internal/config"
	"tg-banshare/internal/logger"
	"tg-banshare/internal/models"
)

// BotService represents the Telegram bot service
type BotService struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
	// Self is the bot's own account.
	Self *telego.User
}

// Start starts the bot handler
func (b *BotService) Start() {
	b.Handler.Start()
}

// Stop stops the bot handler
func (b *BotService) Stop() {
	b.Handler.Stop()
}

// Initialize initializes the bot and webhook. status, when set, is printed
// on the debug page.
func Initialize(ctx context.Context, cfg *config.Config, status func() string) (*BotService, *WebhookServer, error) {
	// Validate configuration
	if len(cfg.Bot.Token) < 6 {
		return nil, nil, fmt.Errorf("bot token is required")
	}

	bot, err := telego.NewBot(cfg.Bot.Token, telego.WithLogger(logger.Named("telego")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	// Get bot info
	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", botUser.Username)

	// Set bot commands for menu in different languages
	setLocalizedCommands(ctx, bot)

	// Delete any existing webhook
	err = bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	// Set fixed secret token or generate one based on bot token
	secretToken := "secure_webhook_token_" + cfg.Bot.Token[len(cfg.Bot.Token)-6:]

	bh, server, err := SetupWebhook(ctx, bot, cfg.Bot.Webhook, secretToken, status)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	return &BotService{
		Bot:     bot,
		Handler: bh,
		Self:    botUser,
	}, server, nil
}

var commandKeys = []struct {
	Command string
	DescKey string
}{
	{Command: "help", DescKey: "cmd_desc_help"},
	{Command: "settings", DescKey: "cmd_desc_settings"},
	{Command: "alerts_here", DescKey: "cmd_desc_alerts_here"},
	{Command: "alerts_off", DescKey: "cmd_desc_alerts_off"},
	{Command: "broadcast", DescKey: "cmd_desc_broadcast"},
	{Command: "language", DescKey: "cmd_desc_language"},
}

// localizedCommands lists the command menu in lang.
func localizedCommands(lang string) []telego.BotCommand {
	commands := make([]telego.BotCommand, 0, len(commandKeys))
	for _, cmd := range commandKeys {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: models.GetTranslation(lang, cmd.DescKey),
		})
	}
	return commands
}

// setLocalizedCommands sets bot commands in different languages
func setLocalizedCommands(ctx context.Context, bot *telego.Bot) {
	// Map of language codes to Telegram language codes
	langCodes := map[string]string{
		models.LangEnglish:            "en",
		models.LangSimplifiedChinese:  "zh",
		models.LangTraditionalChinese: "zh-hant",
	}

	for lang, telegramLang := range langCodes {
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     localizedCommands(lang),
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %s: %v", lang, err)
		}
	}

	// Default commands (without language code) use English
	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: localizedCommands(models.LangEnglish),
	})
	if err != nil {
		logger.Warningf("Failed to set default bot commands: %v", err)
	}
}
