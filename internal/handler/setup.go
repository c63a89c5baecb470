package handler

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"go.uber.org/zap"

	"tg-banshare/internal/bot"
	"tg-banshare/internal/crash"
	"tg-banshare/internal/logger"
	"tg-banshare/internal/service"
)

// Handler turns Telegram updates into calls on the ban sharing services.
type Handler struct {
	bot         *telego.Bot
	botID       int64
	botUsername string
	bans        *service.BanService
	guilds      *service.GuildService
	confirmer   *service.Confirmer
	platform    *bot.Platform
	reasons     *bot.ReasonLedger
	log         *zap.SugaredLogger
}

func New(botService *bot.BotService, bans *service.BanService, guilds *service.GuildService,
	confirmer *service.Confirmer, platform *bot.Platform, reasons *bot.ReasonLedger) *Handler {
	return &Handler{
		bot:         botService.Bot,
		botID:       botService.Self.ID,
		botUsername: botService.Self.Username,
		bans:        bans,
		guilds:      guilds,
		confirmer:   confirmer,
		platform:    platform,
		reasons:     reasons,
		log:         logger.Named("handler"),
	}
}

// SetupMessageHandlers configures all bot message and update handlers. A
// panic in one update is logged and does not stop the others.
func (h *Handler) SetupMessageHandlers(bh *th.BotHandler) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		countUpdate("message")
		return crash.Guard("command", func() error { return h.handleCommand(ctx, message) })
	}, th.AnyCommand())

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		countUpdate("chat_member")
		return crash.Guard("chat_member", func() error { return h.handleChatMemberUpdate(ctx, update) })
	}, th.AnyChatMember())

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		countUpdate("my_chat_member")
		return crash.Guard("my_chat_member", func() error { return h.handleMyChatMemberUpdate(ctx, update) })
	}, th.AnyMyChatMember())

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		countUpdate("callback_query")
		return crash.Guard("callback_query", func() error { return h.handleCallbackQuery(ctx, query) })
	})
}
