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

// maxChainDepth caps provenance walks; real chains are a handful of hops.
const maxChainDepth = 64

// BanRepository handles database operations for bans and the users they reference
type BanRepository struct {
	db *gorm.DB
}

// NewBanRepository creates a new BanRepository
func NewBanRepository(db *gorm.DB) *BanRepository {
	return &BanRepository{db: db}
}

// MigrateTable ensures the users and bans tables exist
func (r *BanRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.User{}, &models.Ban{})
}

// RecordBan inserts the ban or replaces the existing one for the same
// (guild, user) pair and returns the row id. The replace is a single
// upsert statement so a concurrent RemoveBan either runs entirely before or
// entirely after it. A nil BannedBy or RefBanID keeps what the row had.
func (r *BanRepository) RecordBan(ctx context.Context, in models.BanInput) (uint, error) {
	bannedAt := in.BannedAt
	if bannedAt.IsZero() {
		bannedAt = time.Now()
	}

	ban := models.Ban{
		GuildID:  in.GuildID,
		UserID:   in.UserID,
		BannedAt: bannedAt.UTC(),
		BannedBy: in.BannedBy,
		Reason:   models.NormalizeReason(in.Reason),
		RefBanID: in.RefBanID,
	}

	updates := []string{"banned_at", "reason"}
	if in.BannedBy != nil {
		updates = append(updates, "banned_by")
	}
	if in.RefBanID != nil {
		updates = append(updates, "ref_ban_id")
	}

	var id uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.User{ID: in.UserID}).Error; err != nil {
			return fmt.Errorf("upsert user %d: %w", in.UserID, err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(updates),
		}).Create(&ban).Error; err != nil {
			return fmt.Errorf("upsert ban: %w", err)
		}

		// the generated id is not reported on the update path by every dialect
		var stored models.Ban
		if err := tx.Select("id").
			Where("guild_id = ? AND user_id = ?", in.GuildID, in.UserID).
			Take(&stored).Error; err != nil {
			return fmt.Errorf("read back ban: %w", err)
		}
		id = stored.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record ban of %d in %d: %w", in.UserID, in.GuildID, err)
	}
	return id, nil
}

// RemoveBan deletes the ban for the pair and returns the deleted row, or nil
// when the user was not tracked as banned there.
func (r *BanRepository) RemoveBan(ctx context.Context, guildID, userID int64) (*models.Ban, error) {
	var removed *models.Ban
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ban models.Ban
		err := tx.Where("guild_id = ? AND user_id = ?", guildID, userID).Take(&ban).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		// delete by id: a replacement inserted meanwhile gets a new id and survives
		result := tx.Delete(&models.Ban{}, ban.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			removed = &ban
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove ban of %d in %d: %w", userID, guildID, err)
	}
	return removed, nil
}

// GetBan returns the live ban for the pair, or nil.
func (r *BanRepository) GetBan(ctx context.Context, guildID, userID int64) (*models.Ban, error) {
	var ban models.Ban
	err := r.db.WithContext(ctx).Where("guild_id = ? AND user_id = ?", guildID, userID).Take(&ban).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ban of %d in %d: %w", userID, guildID, err)
	}
	return &ban, nil
}

// GetBanByID returns the ban with the given id, or nil.
func (r *BanRepository) GetBanByID(ctx context.Context, id uint) (*models.Ban, error) {
	var ban models.Ban
	err := r.db.WithContext(ctx).Take(&ban, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ban %d: %w", id, err)
	}
	return &ban, nil
}

// ListGuildBans returns the live bans of a guild, oldest first.
func (r *BanRepository) ListGuildBans(ctx context.Context, guildID int64) ([]*models.Ban, error) {
	var bans []*models.Ban
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).Order("banned_at, id").Find(&bans).Error
	if err != nil {
		return nil, fmt.Errorf("list bans of %d: %w", guildID, err)
	}
	return bans, nil
}

// CountGuildBans returns how many live bans a guild has.
func (r *BanRepository) CountGuildBans(ctx context.Context, guildID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Ban{}).Where("guild_id = ?", guildID).Count(&n).Error
	return n, err
}

// ProvenanceChain follows ref_ban_id from banID towards the ban that started
// the propagation. The first element is the ban itself. The walk stops at a
// root, at a reference to a deleted row, or when a row repeats.
func (r *BanRepository) ProvenanceChain(ctx context.Context, banID uint) ([]*models.Ban, error) {
	var chain []*models.Ban
	seen := make(map[uint]bool)

	next := &banID
	for next != nil && !seen[*next] && len(chain) < maxChainDepth {
		seen[*next] = true
		ban, err := r.GetBanByID(ctx, *next)
		if err != nil {
			return chain, err
		}
		if ban == nil {
			break
		}
		chain = append(chain, ban)
		next = ban.RefBanID
	}
	return chain, nil
}

// GetUser returns the user row, or nil if the user was never banned anywhere.
func (r *BanRepository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &user, nil
}
