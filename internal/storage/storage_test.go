package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tg-banshare/internal/config"
	"tg-banshare/internal/models"
)

const (
	guildA = int64(-1001000000001)
	guildB = int64(-1001000000002)
	userU  = int64(123456789012)
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		Logger:   config.LoggerConfig{Level: "WARNING"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bans.db")},
	}
	db, err := Initialize(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func uintPtr(v uint) *uint    { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestRecordBanReplacesExistingRow(t *testing.T) {
	ctx := context.Background()
	repo := NewBanRepository(newTestDB(t))

	first := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	id1, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU, Reason: "spamming", BannedAt: first, BannedBy: int64Ptr(7)})
	require.NoError(t, err)
	require.NotZero(t, id1)

	second := first.Add(time.Hour)
	id2, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU, Reason: "scam links", BannedAt: second})
	require.NoError(t, err)
	id3, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU, Reason: "crypto scam", BannedAt: second.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, id1, id3)

	bans, err := repo.ListGuildBans(ctx, guildA)
	require.NoError(t, err)
	require.Len(t, bans, 1)

	got, err := repo.GetBan(ctx, guildA, userU)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "crypto scam", got.ReasonText())
	assert.True(t, second.Add(time.Minute).Equal(got.BannedAt))
	require.NotNil(t, got.BannedBy, "an unknown actor keeps the recorded one")
	assert.Equal(t, int64(7), *got.BannedBy)

	user, err := repo.GetUser(ctx, userU)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.Deleted)
}

func TestRecordBanStoresEmptyReasonAsNull(t *testing.T) {
	ctx := context.Background()
	repo := NewBanRepository(newTestDB(t))

	_, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU})
	require.NoError(t, err)

	got, err := repo.GetBan(ctx, guildA, userU)
	require.NoError(t, err)
	assert.Nil(t, got.Reason)
	assert.False(t, got.BannedAt.IsZero())
}

func TestRecordBanKeepsReferenceWhenReplacedWithoutOne(t *testing.T) {
	ctx := context.Background()
	repo := NewBanRepository(newTestDB(t))

	origin, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU, Reason: "spamming"})
	require.NoError(t, err)

	propagated, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildB, UserID: userU, Reason: "BanShare: Confirmed by admin", RefBanID: uintPtr(origin)})
	require.NoError(t, err)

	// the platform echo of the same ban arrives without a reference
	_, err = repo.RecordBan(ctx, models.BanInput{GuildID: guildB, UserID: userU, Reason: "BanShare: Confirmed by admin"})
	require.NoError(t, err)

	got, err := repo.GetBanByID(ctx, propagated)
	require.NoError(t, err)
	require.NotNil(t, got.RefBanID)
	assert.Equal(t, origin, *got.RefBanID)

	chain, err := repo.ProvenanceChain(ctx, propagated)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, propagated, chain[0].ID)
	assert.Equal(t, origin, chain[1].ID)
}

func TestProvenanceChainSurvivesDeletedOrigin(t *testing.T) {
	ctx := context.Background()
	repo := NewBanRepository(newTestDB(t))

	origin, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU})
	require.NoError(t, err)
	child, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildB, UserID: userU, RefBanID: uintPtr(origin)})
	require.NoError(t, err)

	removed, err := repo.RemoveBan(ctx, guildA, userU)
	require.NoError(t, err)
	require.NotNil(t, removed)

	chain, err := repo.ProvenanceChain(ctx, child)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, origin, *chain[0].RefBanID)
}

func TestRemoveBan(t *testing.T) {
	ctx := context.Background()
	repo := NewBanRepository(newTestDB(t))

	removed, err := repo.RemoveBan(ctx, guildA, userU)
	require.NoError(t, err)
	assert.Nil(t, removed)

	bannedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU, BannedAt: bannedAt})
	require.NoError(t, err)

	removed, err = repo.RemoveBan(ctx, guildA, userU)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, id, removed.ID)
	assert.True(t, bannedAt.Equal(removed.BannedAt))

	got, err := repo.GetBan(ctx, guildA, userU)
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err = repo.RemoveBan(ctx, guildA, userU)
	require.NoError(t, err)
	assert.Nil(t, removed)
}

func TestConcurrentRecordAndRemoveLeaveConsistentState(t *testing.T) {
	ctx := context.Background()
	repo := NewBanRepository(newTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := repo.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU, Reason: "race"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := repo.RemoveBan(ctx, guildA, userU)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	bans, err := repo.ListGuildBans(ctx, guildA)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(bans), 1)
}

func TestGuildRegistry(t *testing.T) {
	ctx := context.Background()
	repo := NewGuildRepository(newTestDB(t))

	created, err := repo.Whitelist(ctx, guildA)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Whitelist(ctx, guildA)
	require.NoError(t, err)
	assert.False(t, created)

	ok, err := repo.IsWhitelisted(ctx, guildA)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsWhitelisted(ctx, guildB)
	require.NoError(t, err)
	assert.False(t, ok)

	g, err := repo.GetGuild(ctx, guildA)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.False(t, g.BroadcastEnabled)
	assert.Nil(t, g.AlertChannelID)
	assert.Equal(t, models.LangEnglish, g.Language)

	joined := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkJoined(ctx, guildA, "Gophers", joined))
	require.NoError(t, repo.SetBroadcast(ctx, guildA, true))
	require.NoError(t, repo.SetLanguage(ctx, guildA, models.LangTraditionalChinese))
	assert.Error(t, repo.SetLanguage(ctx, guildA, "klingon"))

	g, err = repo.GetGuild(ctx, guildA)
	require.NoError(t, err)
	assert.Equal(t, "Gophers", g.Name)
	require.NotNil(t, g.JoinedAt)
	assert.True(t, joined.Equal(*g.JoinedAt))
	assert.True(t, g.BroadcastEnabled)
	assert.Equal(t, models.LangTraditionalChinese, g.Language)

	require.NoError(t, repo.SetBroadcast(ctx, guildA, false))
	require.NoError(t, repo.MarkLeft(ctx, guildA, joined.Add(time.Hour)))
	g, err = repo.GetGuild(ctx, guildA)
	require.NoError(t, err)
	assert.False(t, g.BroadcastEnabled)
	assert.Empty(t, g.Name)
	assert.Nil(t, g.JoinedAt)
	assert.NotNil(t, g.LeftAt)

	assert.ErrorIs(t, repo.SetBroadcast(ctx, guildB, true), ErrGuildNotFound)
}

func TestAlertChannelIsUniqueAcrossGuilds(t *testing.T) {
	ctx := context.Background()
	repo := NewGuildRepository(newTestDB(t))
	for _, id := range []int64{guildA, guildB} {
		_, err := repo.Whitelist(ctx, id)
		require.NoError(t, err)
	}

	require.NoError(t, repo.SetAlertChannel(ctx, guildA, int64Ptr(guildA)))
	require.NoError(t, repo.SetAlertChannel(ctx, guildA, int64Ptr(guildA)))
	assert.ErrorIs(t, repo.SetAlertChannel(ctx, guildB, int64Ptr(guildA)), ErrAlertChannelTaken)

	g, err := repo.FindByAlertChannel(ctx, guildA)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, guildA, g.ID)

	require.NoError(t, repo.SetAlertChannel(ctx, guildA, nil))
	g, err = repo.FindByAlertChannel(ctx, guildA)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestAlertChannelSinceTracksReassignment(t *testing.T) {
	ctx := context.Background()
	repo := NewGuildRepository(newTestDB(t))
	_, err := repo.Whitelist(ctx, guildA)
	require.NoError(t, err)

	require.NoError(t, repo.SetAlertChannel(ctx, guildA, int64Ptr(guildA)))
	g, err := repo.GetGuild(ctx, guildA)
	require.NoError(t, err)
	require.NotNil(t, g.AlertChannelSince)
	first := *g.AlertChannelSince

	// setting the same chat again keeps older alerts valid
	require.NoError(t, repo.SetAlertChannel(ctx, guildA, int64Ptr(guildA)))
	g, err = repo.GetGuild(ctx, guildA)
	require.NoError(t, err)
	require.NotNil(t, g.AlertChannelSince)
	assert.True(t, first.Equal(*g.AlertChannelSince))

	require.NoError(t, repo.SetAlertChannel(ctx, guildA, nil))
	g, err = repo.GetGuild(ctx, guildA)
	require.NoError(t, err)
	assert.Nil(t, g.AlertChannelSince)
}

func TestClearGuildData(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	guilds := NewGuildRepository(db)
	bans := NewBanRepository(db)

	require.NoError(t, guilds.ClearGuildData(ctx, guildA))

	for _, id := range []int64{guildA, guildB} {
		_, err := guilds.Whitelist(ctx, id)
		require.NoError(t, err)
		_, err = bans.RecordBan(ctx, models.BanInput{GuildID: id, UserID: userU})
		require.NoError(t, err)
	}
	_, err := bans.RecordBan(ctx, models.BanInput{GuildID: guildA, UserID: userU + 1})
	require.NoError(t, err)

	require.NoError(t, guilds.ClearGuildData(ctx, guildA))

	n, err := bans.CountGuildBans(ctx, guildA)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = bans.CountGuildBans(ctx, guildB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := guilds.IsWhitelisted(ctx, guildA)
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := guilds.ListGuilds(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, guildB, all[0].ID)
}
