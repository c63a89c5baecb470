package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tg-banshare/internal/crash"
	"tg-banshare/internal/logger"
	"tg-banshare/internal/metrics"
	"tg-banshare/internal/models"
)

// BanService is the entry point for moderation events observed on the platform.
type BanService struct {
	guilds      GuildStore
	bans        BanStore
	coordinator *Coordinator
	marker      string
	// FanoutTimeout bounds one background propagation.
	FanoutTimeout time.Duration
	// Observe, when set, receives the report of every background propagation.
	Observe func(*FanoutReport)
	log     *zap.SugaredLogger
}

func NewBanService(guilds GuildStore, bans BanStore, coordinator *Coordinator, marker string) *BanService {
	return &BanService{
		guilds:        guilds,
		bans:          bans,
		coordinator:   coordinator,
		marker:        marker,
		FanoutTimeout: 2 * time.Minute,
		log:           logger.Named("bans"),
	}
}

// Marker is the reason prefix of bot-issued actions.
func (s *BanService) Marker() string {
	return s.marker
}

// ClassifyAndRecordBan records an observed ban and returns it classified for
// propagation. Guild configuration is read fresh for every event.
func (s *BanService) ClassifyAndRecordBan(ctx context.Context, ev ModerationEvent) (*ClassifiedAction, error) {
	action, err := s.classify(ctx, ActionBan, ev)
	if err != nil {
		return nil, err
	}

	id, err := s.bans.RecordBan(ctx, models.BanInput{
		GuildID:  ev.GuildID,
		UserID:   ev.UserID,
		Reason:   ev.Reason,
		BannedAt: action.Event.Timestamp,
		BannedBy: ev.ActorID,
	})
	if err != nil {
		metrics.StoreErrors.WithLabelValues("record_ban").Inc()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	action.BanID = id
	s.attachUser(ctx, action)
	return action, nil
}

// ClassifyAndRecordUnban removes the recorded ban, if any, and returns the
// unban classified for propagation with the removed row attached.
func (s *BanService) ClassifyAndRecordUnban(ctx context.Context, ev ModerationEvent) (*ClassifiedAction, error) {
	action, err := s.classify(ctx, ActionUnban, ev)
	if err != nil {
		return nil, err
	}

	removed, err := s.bans.RemoveBan(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("remove_ban").Inc()
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	action.Removed = removed
	s.attachUser(ctx, action)
	return action, nil
}

// Propagate runs the fanout synchronously.
func (s *BanService) Propagate(ctx context.Context, action *ClassifiedAction) *FanoutReport {
	return s.coordinator.Propagate(ctx, action)
}

// HandleBanEvent records the ban and starts propagation in the background.
// It returns once the ban is persisted.
func (s *BanService) HandleBanEvent(ctx context.Context, ev ModerationEvent) (*ClassifiedAction, error) {
	action, err := s.ClassifyAndRecordBan(ctx, ev)
	if err != nil {
		return nil, err
	}
	s.dispatch(action)
	return action, nil
}

// HandleUnbanEvent is HandleBanEvent for unbans.
func (s *BanService) HandleUnbanEvent(ctx context.Context, ev ModerationEvent) (*ClassifiedAction, error) {
	action, err := s.ClassifyAndRecordUnban(ctx, ev)
	if err != nil {
		return nil, err
	}
	s.dispatch(action)
	return action, nil
}

func (s *BanService) dispatch(action *ClassifiedAction) {
	crash.SafeGoroutine("fanout", func() {
		// detached from the update context, which ends when the handler returns
		ctx, cancel := context.WithTimeout(context.Background(), s.FanoutTimeout)
		defer cancel()

		report := s.coordinator.Propagate(ctx, action)
		if s.Observe != nil {
			s.Observe(report)
		}
	})
}

func (s *BanService) classify(ctx context.Context, kind ActionKind, ev ModerationEvent) (*ClassifiedAction, error) {
	if ev.GuildID == 0 || ev.UserID <= 0 {
		return nil, fmt.Errorf("%w: event guild=%d user=%d", ErrValidation, ev.GuildID, ev.UserID)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	guild, err := s.guilds.GetGuild(ctx, ev.GuildID)
	if err != nil {
		return nil, err
	}
	if guild == nil {
		return nil, fmt.Errorf("%w: %d", ErrGuildNotRegistered, ev.GuildID)
	}

	action := &ClassifiedAction{
		Kind:           kind,
		Event:          ev,
		Classification: Classify(ev, guild, s.marker),
		SourceName:     guild.DisplayName(),
	}

	origin := "external"
	if action.SelfOriginated {
		origin = "self"
	}
	metrics.ModerationEvents.WithLabelValues(string(kind), origin).Inc()
	s.log.Infow("moderation event", "kind", kind, "guild", ev.GuildID, "user", ev.UserID,
		"self", action.SelfOriginated, "broadcast", action.BroadcastEligible)
	return action, nil
}

func (s *BanService) attachUser(ctx context.Context, action *ClassifiedAction) {
	user, err := s.bans.GetUser(ctx, action.Event.UserID)
	if err != nil {
		s.log.Warnw("cannot load user", "user", action.Event.UserID, "error", err)
		return
	}
	action.User = user
}
