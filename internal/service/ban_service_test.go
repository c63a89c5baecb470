package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBanValidatesEvent(t *testing.T) {
	env := newTestEnv(t)
	env.addGuild(t, guildA, "Alpha", true, chatA)

	for _, ev := range []ModerationEvent{
		{GuildID: 0, UserID: userU},
		{GuildID: guildA, UserID: 0},
		{GuildID: guildA, UserID: -5},
	} {
		_, err := env.service.ClassifyAndRecordBan(context.Background(), ev)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Zero(t, env.bans.recordCount())
}

func TestRecordBanInUnregisteredGuild(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.ClassifyAndRecordBan(context.Background(), ModerationEvent{GuildID: guildA, UserID: userU})
	assert.ErrorIs(t, err, ErrGuildNotRegistered)
	_, err = env.service.ClassifyAndRecordUnban(context.Background(), ModerationEvent{GuildID: guildA, UserID: userU})
	assert.ErrorIs(t, err, ErrGuildNotRegistered)
}

func TestRecordBanPersists(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addGuild(t, guildA, "Alpha", true, chatA)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	by := actor

	action, err := env.service.ClassifyAndRecordBan(ctx, ModerationEvent{
		GuildID: guildA, UserID: userU, Reason: "  crypto spam  ", Timestamp: at, ActorID: &by,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionBan, action.Kind)
	assert.True(t, action.BroadcastEligible)
	assert.False(t, action.SelfOriginated)
	assert.Equal(t, "Alpha", action.SourceName)
	assert.NotZero(t, action.BanID)
	require.NotNil(t, action.User)
	assert.Equal(t, userU, action.User.ID)

	ban, err := env.bans.GetBan(ctx, guildA, userU)
	require.NoError(t, err)
	require.NotNil(t, ban)
	assert.Equal(t, action.BanID, ban.ID)
	assert.Equal(t, "crypto spam", ban.ReasonText())
	assert.True(t, at.Equal(ban.BannedAt))
	require.NotNil(t, ban.BannedBy)
	assert.Equal(t, actor, *ban.BannedBy)
}

func TestRecordBanReplacesEarlierBan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addGuild(t, guildA, "Alpha", true, chatA)

	first := recordBan(t, env, ModerationEvent{GuildID: guildA, UserID: userU, Reason: "first"})
	second := recordBan(t, env, ModerationEvent{GuildID: guildA, UserID: userU, Reason: "second"})
	assert.Equal(t, first.BanID, second.BanID)

	n, err := env.bans.CountGuildBans(ctx, guildA)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	ban, err := env.bans.GetBan(ctx, guildA, userU)
	require.NoError(t, err)
	assert.Equal(t, "second", ban.ReasonText())
}

func TestRecordUnbanReturnsRemovedBan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addGuild(t, guildA, "Alpha", true, chatA)
	banned := recordBan(t, env, ModerationEvent{GuildID: guildA, UserID: userU, Reason: "spamming"})

	action, err := env.service.ClassifyAndRecordUnban(ctx, ModerationEvent{GuildID: guildA, UserID: userU})
	require.NoError(t, err)
	assert.Equal(t, ActionUnban, action.Kind)
	require.NotNil(t, action.Removed)
	assert.Equal(t, banned.BanID, action.Removed.ID)
	assert.Equal(t, "spamming", action.Removed.ReasonText())

	ban, err := env.bans.GetBan(ctx, guildA, userU)
	require.NoError(t, err)
	assert.Nil(t, ban)
}

func TestRecordBanPersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addGuild(t, guildA, "Alpha", true, chatA)
	env.bans.failRecords = 1

	_, err := env.service.ClassifyAndRecordBan(context.Background(), ModerationEvent{GuildID: guildA, UserID: userU})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestHandleBanEventPropagatesInBackground(t *testing.T) {
	env := newTestEnv(t)
	env.addGuild(t, guildA, "Alpha", true, chatA)
	env.addGuild(t, guildB, "Bravo", false, chatB)
	reports := make(chan *FanoutReport, 1)
	env.service.Observe = func(r *FanoutReport) { reports <- r }

	action, err := env.service.HandleBanEvent(context.Background(), ModerationEvent{GuildID: guildA, UserID: userU, Reason: "spamming"})
	require.NoError(t, err)
	assert.NotZero(t, action.BanID)

	select {
	case report := <-reports:
		assert.Equal(t, []int64{guildB}, report.Sent)
	case <-time.After(5 * time.Second):
		t.Fatal("fanout did not finish")
	}
	require.Len(t, env.sender.to(guildB), 1)
}

func TestHandleEventsDoNotEchoOwnEnforcement(t *testing.T) {
	env := newTestEnv(t)
	env.addGuild(t, guildA, "Alpha", true, chatA)
	env.addGuild(t, guildB, "Bravo", true, chatB)
	reports := make(chan *FanoutReport, 2)
	env.service.Observe = func(r *FanoutReport) { reports <- r }

	ev := ModerationEvent{GuildID: guildB, UserID: userU, Reason: SelfReason(testMarker, "Confirmed by admin")}
	_, err := env.service.HandleBanEvent(context.Background(), ev)
	require.NoError(t, err)
	_, err = env.service.HandleUnbanEvent(context.Background(), ev)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case report := <-reports:
			assert.Equal(t, SkipSelfOriginated, report.Suppressed)
		case <-time.After(5 * time.Second):
			t.Fatal("fanout did not finish")
		}
	}
	assert.Zero(t, env.sender.total())
}
