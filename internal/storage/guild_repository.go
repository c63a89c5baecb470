package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tg-banshare/internal/models"
)

var (
	// ErrGuildNotFound is returned by updates addressed to a guild that is not whitelisted.
	ErrGuildNotFound = errors.New("guild not registered")
	// ErrAlertChannelTaken is returned when another guild already delivers alerts to the chat.
	ErrAlertChannelTaken = errors.New("alert chat already used by another guild")
)

// GuildRepository handles database operations for guilds
type GuildRepository struct {
	db *gorm.DB
}

// NewGuildRepository creates a new GuildRepository
func NewGuildRepository(db *gorm.DB) *GuildRepository {
	return &GuildRepository{db: db}
}

// MigrateTable ensures the guilds table exists with the right schema
func (r *GuildRepository) MigrateTable() error {
	if err := r.db.AutoMigrate(&models.Guild{}); err != nil {
		return err
	}

	// rows written before the language column existed
	return r.db.Model(&models.Guild{}).
		Where("language = ? OR language IS NULL", "").
		Update("language", models.LangEnglish).Error
}

// Whitelist registers a guild. It reports false if it was already registered.
func (r *GuildRepository) Whitelist(ctx context.Context, guildID int64) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Guild{ID: guildID, Language: models.LangEnglish})
	if result.Error != nil {
		return false, fmt.Errorf("whitelist guild %d: %w", guildID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetGuild returns the guild, or nil if it is not whitelisted.
func (r *GuildRepository) GetGuild(ctx context.Context, guildID int64) (*models.Guild, error) {
	var guild models.Guild
	err := r.db.WithContext(ctx).Take(&guild, guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guild %d: %w", guildID, err)
	}
	return &guild, nil
}

// IsWhitelisted reports whether the bot may operate in the guild.
func (r *GuildRepository) IsWhitelisted(ctx context.Context, guildID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Guild{}).Where("id = ?", guildID).Count(&n).Error
	return n > 0, err
}

// ListGuilds returns every whitelisted guild.
func (r *GuildRepository) ListGuilds(ctx context.Context) ([]*models.Guild, error) {
	var guilds []*models.Guild
	if err := r.db.WithContext(ctx).Order("id").Find(&guilds).Error; err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	return guilds, nil
}

// FindByAlertChannel returns the guild whose alerts go to chatID, or nil.
func (r *GuildRepository) FindByAlertChannel(ctx context.Context, chatID int64) (*models.Guild, error) {
	var guild models.Guild
	err := r.db.WithContext(ctx).Where("alert_channel_id = ?", chatID).Take(&guild).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find guild by alert chat %d: %w", chatID, err)
	}
	return &guild, nil
}

// MarkJoined records that the bot is now a member of the guild.
func (r *GuildRepository) MarkJoined(ctx context.Context, guildID int64, name string, at time.Time) error {
	return r.update(ctx, guildID, map[string]interface{}{
		"name":      name,
		"joined_at": at.UTC(),
		"left_at":   nil,
	})
}

// MarkLeft clears the operational fields once the bot is no longer in the guild.
func (r *GuildRepository) MarkLeft(ctx context.Context, guildID int64, at time.Time) error {
	return r.update(ctx, guildID, map[string]interface{}{
		"name":      "",
		"joined_at": nil,
		"left_at":   at.UTC(),
	})
}

// SetAlertChannel points the guild's alerts at chatID; nil turns alerts off.
func (r *GuildRepository) SetAlertChannel(ctx context.Context, guildID int64, chatID *int64) error {
	values := map[string]interface{}{"alert_channel_id": chatID, "alert_channel_since": nil}
	if chatID != nil {
		owner, err := r.FindByAlertChannel(ctx, *chatID)
		if err != nil {
			return err
		}
		if owner != nil && owner.ID != guildID {
			return ErrAlertChannelTaken
		}
		if owner != nil {
			// same chat again, alerts already posted there stay valid
			delete(values, "alert_channel_since")
		} else {
			values["alert_channel_since"] = time.Now().UTC()
		}
	}

	err := r.update(ctx, guildID, values)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlertChannelTaken
	}
	return err
}

// SetBroadcast sets whether bans made in the guild are shared with others.
func (r *GuildRepository) SetBroadcast(ctx context.Context, guildID int64, enabled bool) error {
	return r.update(ctx, guildID, map[string]interface{}{"broadcast_enabled": enabled})
}

// SetLanguage sets the language of alerts and replies in the guild.
func (r *GuildRepository) SetLanguage(ctx context.Context, guildID int64, lang string) error {
	if !models.IsSupportedLanguage(lang) {
		return fmt.Errorf("unsupported language %q", lang)
	}
	return r.update(ctx, guildID, map[string]interface{}{"language": lang})
}

// ClearGuildData removes every ban recorded in the guild and the guild itself,
// which also drops it from the whitelist. Missing data is not an error.
func (r *GuildRepository) ClearGuildData(ctx context.Context, guildID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("guild_id = ?", guildID).Delete(&models.Ban{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", guildID).Delete(&models.Guild{}).Error
	})
	if err != nil {
		return fmt.Errorf("clear data of guild %d: %w", guildID, err)
	}
	return nil
}

func (r *GuildRepository) update(ctx context.Context, guildID int64, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Guild{}).Where("id = ?", guildID).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("update guild %d: %w", guildID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGuildNotFound
	}
	return nil
}
