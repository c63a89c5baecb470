package service

import (
	"context"
	"errors"
	"time"

	"tg-banshare/internal/logger"
	"tg-banshare/internal/models"
	"tg-banshare/internal/storage"
)

// GuildRegistry is the full guild repository.
type GuildRegistry interface {
	GuildStore
	Whitelist(ctx context.Context, guildID int64) (bool, error)
	IsWhitelisted(ctx context.Context, guildID int64) (bool, error)
	FindByAlertChannel(ctx context.Context, chatID int64) (*models.Guild, error)
	MarkJoined(ctx context.Context, guildID int64, name string, at time.Time) error
	MarkLeft(ctx context.Context, guildID int64, at time.Time) error
	SetAlertChannel(ctx context.Context, guildID int64, chatID *int64) error
	SetBroadcast(ctx context.Context, guildID int64, enabled bool) error
	SetLanguage(ctx context.Context, guildID int64, lang string) error
	ClearGuildData(ctx context.Context, guildID int64) error
}

// GuildService manages guild membership and per-guild settings.
type GuildService struct {
	repo GuildRegistry
}

func NewGuildService(repo GuildRegistry) *GuildService {
	return &GuildService{repo: repo}
}

// OnBotJoined reports whether the bot may stay in the guild and, if so,
// records the join.
func (s *GuildService) OnBotJoined(ctx context.Context, guildID int64, name string) (bool, error) {
	ok, err := s.repo.IsWhitelisted(ctx, guildID)
	if err != nil || !ok {
		return false, err
	}
	if err := s.repo.MarkJoined(ctx, guildID, name, time.Now()); err != nil {
		return true, err
	}
	logger.Infof("Joined whitelisted group %d (%s)", guildID, name)
	return true, nil
}

// OnBotLeft clears the operational fields of the guild.
func (s *GuildService) OnBotLeft(ctx context.Context, guildID int64) error {
	err := s.repo.MarkLeft(ctx, guildID, time.Now())
	if errors.Is(err, storage.ErrGuildNotFound) {
		return nil
	}
	return err
}

// Whitelist allows the bot to operate in the guild.
func (s *GuildService) Whitelist(ctx context.Context, guildID int64) (bool, error) {
	return s.repo.Whitelist(ctx, guildID)
}

// Unwhitelist forgets everything about the guild. The caller is responsible
// for making the bot leave it.
func (s *GuildService) Unwhitelist(ctx context.Context, guildID int64) error {
	return s.repo.ClearGuildData(ctx, guildID)
}

func (s *GuildService) Get(ctx context.Context, guildID int64) (*models.Guild, error) {
	return s.repo.GetGuild(ctx, guildID)
}

func (s *GuildService) List(ctx context.Context) ([]*models.Guild, error) {
	return s.repo.ListGuilds(ctx)
}

// ForAlertChat returns the guild whose alerts are delivered to chatID.
func (s *GuildService) ForAlertChat(ctx context.Context, chatID int64) (*models.Guild, error) {
	return s.repo.FindByAlertChannel(ctx, chatID)
}

func (s *GuildService) SetAlertChannel(ctx context.Context, guildID int64, chatID *int64) error {
	return s.repo.SetAlertChannel(ctx, guildID, chatID)
}

func (s *GuildService) SetBroadcast(ctx context.Context, guildID int64, enabled bool) error {
	return s.repo.SetBroadcast(ctx, guildID, enabled)
}

func (s *GuildService) SetLanguage(ctx context.Context, guildID int64, lang string) error {
	return s.repo.SetLanguage(ctx, guildID, lang)
}
