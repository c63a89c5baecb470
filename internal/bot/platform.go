package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tg-banshare/internal/config"
	"tg-banshare/internal/logger"
	"tg-banshare/internal/models"
	"tg-banshare/internal/service"
)

const channelCacheSize = 1024

// API is the part of *telego.Bot the platform adapters call.
type API interface {
	GetChat(ctx context.Context, params *telego.GetChatParams) (*telego.ChatFullInfo, error)
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
	BanChatMember(ctx context.Context, params *telego.BanChatMemberParams) error
	UnbanChatMember(ctx context.Context, params *telego.UnbanChatMemberParams) error
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageReplyMarkup(ctx context.Context, params *telego.EditMessageReplyMarkupParams) (*telego.Message, error)
}

type channelState struct {
	usable bool
	why    string
}

// Platform implements the service Directory, Enforcer and AlertSender on
// top of the Telegram Bot API.
type Platform struct {
	api         API
	botID       int64
	reasons     *ReasonLedger
	channels    *expirable.LRU[int64, channelState]
	limiter     *rate.Limiter
	sendTimeout time.Duration
	log         *zap.SugaredLogger
}

func NewPlatform(api API, botID int64, reasons *ReasonLedger, cfg config.FanoutConfig) *Platform {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	ttl := cfg.ChannelCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Platform{
		api:         api,
		botID:       botID,
		reasons:     reasons,
		channels:    expirable.NewLRU[int64, channelState](channelCacheSize, nil, ttl),
		limiter:     rate.NewLimiter(limit, burst),
		sendTimeout: cfg.SendTimeout,
		log:         logger.Named("telegram"),
	}
}

// CheckAlertChannel verifies the bot can post into chatID. Definitive
// answers are cached; failed lookups are not.
func (p *Platform) CheckAlertChannel(ctx context.Context, chatID int64) error {
	if state, ok := p.channels.Get(chatID); ok {
		return state.err(chatID)
	}

	state, err := p.inspectChannel(ctx, chatID)
	if err != nil {
		return err
	}
	p.channels.Add(chatID, state)
	return state.err(chatID)
}

func (s channelState) err(chatID int64) error {
	if s.usable {
		return nil
	}
	return fmt.Errorf("%w: chat %d: %s", service.ErrChannelUnusable, chatID, s.why)
}

func (p *Platform) inspectChannel(ctx context.Context, chatID int64) (channelState, error) {
	chat, err := p.api.GetChat(ctx, &telego.GetChatParams{ChatID: telego.ChatID{ID: chatID}})
	if err != nil {
		if code, desc, ok := apiError(err); ok && (code == http.StatusBadRequest || code == http.StatusForbidden) {
			return channelState{why: desc}, nil
		}
		return channelState{}, err
	}

	// a private chat is reachable once GetChat succeeds
	if chat.Type == telego.ChatTypePrivate {
		return channelState{usable: true}, nil
	}

	self, err := p.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: p.botID,
	})
	if err != nil {
		if code, desc, ok := apiError(err); ok && (code == http.StatusBadRequest || code == http.StatusForbidden) {
			return channelState{why: desc}, nil
		}
		return channelState{}, err
	}

	switch self.MemberStatus() {
	case telego.MemberStatusLeft, telego.MemberStatusBanned:
		return channelState{why: "bot is not a member"}, nil
	case telego.MemberStatusRestricted:
		if restricted, ok := self.(*telego.ChatMemberRestricted); ok && !restricted.CanSendMessages {
			return channelState{why: "bot may not send messages"}, nil
		}
	case telego.MemberStatusMember:
		if chat.Type == telego.ChatTypeChannel {
			return channelState{why: "bot is not a channel administrator"}, nil
		}
	}
	return channelState{usable: true}, nil
}

func (p *Platform) IsMember(ctx context.Context, guildID, userID int64) (bool, error) {
	member, err := p.member(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	return member.MemberIsMember(), nil
}

func (p *Platform) IsBanned(ctx context.Context, guildID, userID int64) (bool, error) {
	member, err := p.member(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	return member.MemberStatus() == telego.MemberStatusBanned, nil
}

func (p *Platform) member(ctx context.Context, chatID, userID int64) (telego.ChatMember, error) {
	member, err := p.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: userID,
	})
	if err != nil {
		return nil, fmt.Errorf("get member %d of %d: %w", userID, chatID, err)
	}
	return member, nil
}

// Ban bans the user permanently. The reason is kept in the ledger so the
// resulting chat_member update can be attributed to the bot.
func (p *Platform) Ban(ctx context.Context, guildID, userID int64, reason string) error {
	p.reasons.Put(guildID, userID, reason)
	err := p.api.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: telego.ChatID{ID: guildID},
		UserID: userID,
	})
	if err != nil {
		p.reasons.Forget(guildID, userID)
		return enforcementError("ban", guildID, userID, err)
	}
	p.log.Infow("banned", "guild", guildID, "user", userID, "reason", reason)
	return nil
}

// Unban lifts a ban without kicking users who are not banned.
func (p *Platform) Unban(ctx context.Context, guildID, userID int64, reason string) error {
	p.reasons.Put(guildID, userID, reason)
	err := p.api.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       telego.ChatID{ID: guildID},
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		p.reasons.Forget(guildID, userID)
		return enforcementError("unban", guildID, userID, err)
	}
	p.log.Infow("unbanned", "guild", guildID, "user", userID, "reason", reason)
	return nil
}

// SendAlert renders the alert in the recipient's language and posts it.
func (p *Platform) SendAlert(ctx context.Context, recipient *models.Guild, chatID int64, alert service.Alert) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}

	text, markup := RenderAlert(recipient.Language, alert)
	_, err := p.api.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:             telego.ChatID{ID: chatID},
		Text:               text,
		ParseMode:          "HTML",
		LinkPreviewOptions: &telego.LinkPreviewOptions{IsDisabled: true},
		ReplyMarkup:        markup,
	})
	if err != nil {
		if code, desc, ok := apiError(err); ok && code == http.StatusForbidden {
			// kicked from the alert chat since the last check
			p.channels.Remove(chatID)
			return fmt.Errorf("%w: chat %d: %s", service.ErrChannelUnusable, chatID, desc)
		}
		return fmt.Errorf("send alert to %d: %w", chatID, err)
	}
	return nil
}

// Forget drops the cached state of an alert chat after its owner changed it.
func (p *Platform) Forget(chatID int64) {
	p.channels.Remove(chatID)
}

// Control returns the control of an alert message the bot sent.
func (p *Platform) Control(chatID int64, messageID int, lang string) service.Control {
	return &messageControl{api: p.api, chatID: chatID, messageID: messageID, lang: lang}
}

type messageControl struct {
	api       API
	chatID    int64
	messageID int
	lang      string
}

func (c *messageControl) Disable(ctx context.Context, label string) error {
	_, err := c.api.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      telego.ChatID{ID: c.chatID},
		MessageID:   c.messageID,
		ReplyMarkup: inertMarkup(c.lang, label),
	})
	return err
}

func apiError(err error) (int, string, bool) {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode, apiErr.Description, true
	}
	return 0, "", false
}

var permissionHints = []string{"not enough rights", "chat_admin_required", "administrator", "chat owner"}

func enforcementError(action string, guildID, userID int64, err error) error {
	if code, desc, ok := apiError(err); ok {
		lower := strings.ToLower(desc)
		if code == http.StatusForbidden {
			return fmt.Errorf("%w: %s %d in %d: %s", service.ErrPermission, action, userID, guildID, desc)
		}
		for _, hint := range permissionHints {
			if strings.Contains(lower, hint) {
				return fmt.Errorf("%w: %s %d in %d: %s", service.ErrPermission, action, userID, guildID, desc)
			}
		}
	}
	return fmt.Errorf("%s %d in %d: %w", action, userID, guildID, err)
}
