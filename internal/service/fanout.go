package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tg-banshare/internal/logger"
	"tg-banshare/internal/metrics"
	"tg-banshare/internal/models"
)

type SkipReason string

const (
	SkipSource         SkipReason = "source"
	SkipSelfOriginated SkipReason = "self_originated"
	SkipNotEligible    SkipReason = "broadcast_disabled"
	SkipNotJoined      SkipReason = "not_joined"
	SkipAlreadyBanned  SkipReason = "already_banned"
)

// FanoutReport records what happened to every candidate recipient.
type FanoutReport struct {
	Kind    ActionKind
	GuildID int64
	UserID  int64

	// Suppressed is set when the action was not propagated at all.
	Suppressed SkipReason
	// Err is set when the recipient list could not be loaded.
	Err error

	Sent          []int64
	Skipped       map[int64]SkipReason
	Misconfigured map[int64]error
	Failed        map[int64]error

	mu sync.Mutex
}

func newFanoutReport(action *ClassifiedAction) *FanoutReport {
	return &FanoutReport{
		Kind:          action.Kind,
		GuildID:       action.Event.GuildID,
		UserID:        action.Event.UserID,
		Skipped:       make(map[int64]SkipReason),
		Misconfigured: make(map[int64]error),
		Failed:        make(map[int64]error),
	}
}

func (r *FanoutReport) sent(guildID int64) {
	r.mu.Lock()
	r.Sent = append(r.Sent, guildID)
	r.mu.Unlock()
	metrics.AlertOutcomes.WithLabelValues(string(r.Kind), "sent").Inc()
}

func (r *FanoutReport) skip(guildID int64, reason SkipReason) {
	r.mu.Lock()
	r.Skipped[guildID] = reason
	r.mu.Unlock()
	metrics.AlertOutcomes.WithLabelValues(string(r.Kind), "skipped").Inc()
}

func (r *FanoutReport) misconfigured(guildID int64, err error) {
	r.mu.Lock()
	r.Misconfigured[guildID] = err
	r.mu.Unlock()
	metrics.AlertOutcomes.WithLabelValues(string(r.Kind), "misconfigured").Inc()
}

func (r *FanoutReport) fail(guildID int64, err error) {
	r.mu.Lock()
	r.Failed[guildID] = err
	r.mu.Unlock()
	metrics.AlertOutcomes.WithLabelValues(string(r.Kind), "failed").Inc()
}

// SentTo reports whether an alert went out to guildID.
func (r *FanoutReport) SentTo(guildID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.Sent {
		if id == guildID {
			return true
		}
	}
	return false
}

func (r *FanoutReport) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Suppressed != "" {
		return fmt.Sprintf("%s of %d in %d suppressed: %s", r.Kind, r.UserID, r.GuildID, r.Suppressed)
	}
	sent := append([]int64(nil), r.Sent...)
	sort.Slice(sent, func(i, j int) bool { return sent[i] < sent[j] })
	return fmt.Sprintf("%s of %d in %d: sent=%v skipped=%d misconfigured=%d failed=%d",
		r.Kind, r.UserID, r.GuildID, sent, len(r.Skipped), len(r.Misconfigured), len(r.Failed))
}

// Coordinator delivers a classified action to every other registered guild.
type Coordinator struct {
	guilds GuildStore
	bans   BanStore
	dir    Directory
	sender AlertSender
	limit  int
	now    func() time.Time
	log    *zap.SugaredLogger
}

// NewCoordinator creates a coordinator that contacts at most concurrency
// recipients at a time.
func NewCoordinator(guilds GuildStore, bans BanStore, dir Directory, sender AlertSender, concurrency int) *Coordinator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Coordinator{
		guilds: guilds,
		bans:   bans,
		dir:    dir,
		sender: sender,
		limit:  concurrency,
		now:    time.Now,
		log:    logger.Named("fanout"),
	}
}

// Propagate sends the action's alert to each eligible recipient. Failures
// stay with their recipient and end up in the report; Propagate itself
// never fails.
func (c *Coordinator) Propagate(ctx context.Context, action *ClassifiedAction) *FanoutReport {
	report := newFanoutReport(action)
	start := c.now()
	defer func() {
		metrics.FanoutDuration.WithLabelValues(string(action.Kind)).Observe(time.Since(start).Seconds())
	}()

	// never re-broadcast our own enforcement, it would bounce between guilds forever
	if action.SelfOriginated {
		report.Suppressed = SkipSelfOriginated
		return report
	}
	if !action.BroadcastEligible {
		report.Suppressed = SkipNotEligible
		return report
	}

	guilds, err := c.guilds.ListGuilds(ctx)
	if err != nil {
		report.Err = err
		c.log.Errorw("cannot load recipients", "kind", action.Kind, "guild", action.Event.GuildID, "error", err)
		return report
	}

	var g errgroup.Group
	g.SetLimit(c.limit)
	for _, guild := range guilds {
		if guild.ID == action.Event.GuildID {
			report.skip(guild.ID, SkipSource)
			continue
		}
		g.Go(func() error {
			c.deliver(ctx, action, guild, report)
			return nil
		})
	}
	_ = g.Wait()

	c.log.Infof("fanout done: %s", report)
	return report
}

func (c *Coordinator) deliver(ctx context.Context, action *ClassifiedAction, guild *models.Guild, report *FanoutReport) {
	userID := action.Event.UserID
	log := c.log.With("kind", action.Kind, "recipient", guild.ID, "user", userID)

	if !guild.Joined() {
		report.skip(guild.ID, SkipNotJoined)
		return
	}
	if guild.AlertChannelID == nil {
		report.misconfigured(guild.ID, ErrNoAlertChannel)
		log.Warnw("recipient has no alert chat")
		return
	}
	chatID := *guild.AlertChannelID

	if err := c.dir.CheckAlertChannel(ctx, chatID); err != nil {
		if errors.Is(err, ErrChannelUnusable) {
			report.misconfigured(guild.ID, err)
			log.Warnw("alert chat unusable", "chat", chatID, "error", err)
		} else {
			report.fail(guild.ID, fmt.Errorf("%w: check chat %d: %v", ErrTransientDelivery, chatID, err))
			log.Errorw("alert chat check failed", "chat", chatID, "error", err)
		}
		return
	}

	existing, err := c.bans.GetBan(ctx, guild.ID, userID)
	if err != nil {
		if action.Kind == ActionBan {
			report.fail(guild.ID, err)
			log.Errorw("cannot read recipient ban", "error", err)
			return
		}
		// unban alerts go out regardless, the local duration is just omitted
		log.Warnw("cannot read recipient ban", "error", err)
		existing = nil
	}

	alert := Alert{
		Kind:            action.Kind,
		SourceGuildID:   action.Event.GuildID,
		SourceGuildName: action.SourceName,
		UserID:          userID,
		Reason:          action.Event.Reason,
	}
	if age, ok := action.User.AccountAge(action.Event.Timestamp); ok {
		alert.AccountAge = &age
	}

	switch action.Kind {
	case ActionBan:
		if existing != nil {
			report.skip(guild.ID, SkipAlreadyBanned)
			return
		}
		banID := action.BanID
		alert.Token = EncodeToken(ActionBan, userID, &banID)
	case ActionUnban:
		if existing != nil {
			held := c.now().Sub(existing.BannedAt)
			alert.BannedHereFor = &held
		}
		if removed := action.Removed; removed != nil {
			lasted := action.Event.Timestamp.Sub(removed.BannedAt)
			alert.SourceBannedFor = &lasted
			if alert.Reason == "" {
				alert.Reason = removed.ReasonText()
			}
		}
		alert.Token = EncodeToken(ActionUnban, userID, nil)
	}

	if member, err := c.dir.IsMember(ctx, guild.ID, userID); err != nil {
		log.Debugw("membership lookup failed", "error", err)
	} else {
		alert.InGuild = &member
	}

	if err := c.sender.SendAlert(ctx, guild, chatID, alert); err != nil {
		if !errors.Is(err, ErrPermission) && !errors.Is(err, ErrChannelUnusable) {
			err = fmt.Errorf("%w: %v", ErrTransientDelivery, err)
		}
		report.fail(guild.ID, err)
		log.Errorw("alert delivery failed", "chat", chatID, "error", err)
		return
	}
	report.sent(guild.ID)
}
