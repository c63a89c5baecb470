package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-banshare/internal/models"
)

const actor = int64(777000111)

// sourceBan records U's ban in guild A and returns the token alerts for it carry.
func sourceBan(t *testing.T, env *testEnv) (string, uint) {
	t.Helper()
	env.addGuild(t, guildA, "Alpha", true, chatA)
	env.addGuild(t, guildC, "Charlie", false, chatC)
	action := recordBan(t, env, ModerationEvent{GuildID: guildA, UserID: userU, Reason: "spamming"})
	id := action.BanID
	return EncodeToken(ActionBan, userU, &id), id
}

func TestConfirmBan(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	token, refID := sourceBan(t, env)
	ctl := &fakeControl{}

	res := env.confirmer.HandleConfirmation(ctx, token, GuildContext{GuildID: guildC, ActorID: actor}, ctl)
	require.Equal(t, OutcomeDone, res.Outcome, "%v", res.Err)
	assert.Equal(t, userU, res.Token.UserID)

	require.Len(t, env.enforcer.calls, 1)
	call := env.enforcer.calls[0]
	assert.Equal(t, ActionBan, call.kind)
	assert.Equal(t, guildC, call.guild)
	assert.Equal(t, SelfReason(testMarker, "Confirmed by admin"), call.reason)

	ban, err := env.bans.GetBan(ctx, guildC, userU)
	require.NoError(t, err)
	require.NotNil(t, ban)
	assert.Equal(t, res.BanID, ban.ID)
	require.NotNil(t, ban.RefBanID)
	assert.Equal(t, refID, *ban.RefBanID)
	require.NotNil(t, ban.BannedBy)
	assert.Equal(t, actor, *ban.BannedBy)

	chain, err := env.bans.ProvenanceChain(ctx, ban.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, guildA, chain[1].GuildID)

	assert.Equal(t, []string{"control_banned"}, ctl.labels)
}

func TestConfirmTwiceEnforcesOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	before := env.bans.recordCount()
	gctx := GuildContext{GuildID: guildC, ActorID: actor}

	first := env.confirmer.HandleConfirmation(ctx, token, gctx, &fakeControl{})
	second := env.confirmer.HandleConfirmation(ctx, token, gctx, &fakeControl{})

	assert.Equal(t, OutcomeDone, first.Outcome)
	assert.Equal(t, OutcomeAlreadyActioned, second.Outcome)
	assert.Equal(t, first.BanID, second.BanID)
	assert.Equal(t, 1, env.enforcer.callCount())
	assert.Equal(t, before+1, env.bans.recordCount())
}

func TestConcurrentConfirmationsEnforceOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	env.enforcer.entered = make(chan struct{})
	env.enforcer.release = make(chan struct{})
	gctx := GuildContext{GuildID: guildC, ActorID: actor}

	var wg sync.WaitGroup
	var first ConfirmResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = env.confirmer.HandleConfirmation(ctx, token, gctx, &fakeControl{})
	}()

	<-env.enforcer.entered
	second := env.confirmer.HandleConfirmation(ctx, token, gctx, &fakeControl{})
	close(env.enforcer.release)
	wg.Wait()

	assert.Equal(t, OutcomeInProgress, second.Outcome)
	assert.Equal(t, OutcomeDone, first.Outcome)
	assert.Equal(t, 1, env.enforcer.callCount())
}

func TestConfirmWhenAlreadyBannedOnPlatform(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	env.dir.setBanned(guildC, userU, true)
	ctl := &fakeControl{}

	res := env.confirmer.HandleConfirmation(ctx, token, GuildContext{GuildID: guildC, ActorID: actor}, ctl)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Zero(t, env.enforcer.callCount())

	ban, err := env.bans.GetBan(ctx, guildC, userU)
	require.NoError(t, err)
	assert.NotNil(t, ban)
}

func TestConfirmPermissionDenied(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	env.enforcer.err = fmt.Errorf("%w: not enough rights to restrict/unrestrict chat member", ErrPermission)
	ctl := &fakeControl{}

	res := env.confirmer.HandleConfirmation(ctx, token, GuildContext{GuildID: guildC, ActorID: actor}, ctl)
	assert.Equal(t, OutcomePermission, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrPermission)
	assert.Empty(t, ctl.labels)

	ban, err := env.bans.GetBan(ctx, guildC, userU)
	require.NoError(t, err)
	assert.Nil(t, ban)
}

func TestConfirmEnforcementFailure(t *testing.T) {
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	env.enforcer.err = errors.New("Internal Server Error")
	ctl := &fakeControl{}

	res := env.confirmer.HandleConfirmation(context.Background(), token, GuildContext{GuildID: guildC, ActorID: actor}, ctl)
	assert.Equal(t, OutcomeEnforcement, res.Outcome)
	assert.Empty(t, ctl.labels)
}

func TestConfirmRetriesOnlyTheRecording(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	env.bans.failRecords = 1
	gctx := GuildContext{GuildID: guildC, ActorID: actor}
	ctl := &fakeControl{}

	res := env.confirmer.HandleConfirmation(ctx, token, gctx, ctl)
	assert.Equal(t, OutcomePersistence, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrPersistence)
	assert.Empty(t, ctl.labels)
	assert.Equal(t, 1, env.enforcer.callCount())

	res = env.confirmer.HandleConfirmation(ctx, token, gctx, ctl)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, 1, env.enforcer.callCount())
	assert.Equal(t, []string{"control_banned"}, ctl.labels)

	ban, err := env.bans.GetBan(ctx, guildC, userU)
	require.NoError(t, err)
	assert.NotNil(t, ban)
}

func TestConfirmLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	env.dir.bannedErr = errors.New("Bad Request: chat not found")

	// platform state unknown: treat as not yet banned and enforce
	res := env.confirmer.HandleConfirmation(context.Background(), token, GuildContext{GuildID: guildC, ActorID: actor}, &fakeControl{})
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, 1, env.enforcer.callCount())
}

func TestConfirmUnban(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addGuild(t, guildC, "Charlie", false, chatC)
	_, err := env.bans.RecordBan(ctx, models.BanInput{GuildID: guildC, UserID: userU})
	require.NoError(t, err)
	env.dir.setBanned(guildC, userU, true)
	ctl := &fakeControl{}

	res := env.confirmer.HandleConfirmation(ctx, EncodeToken(ActionUnban, userU, nil), GuildContext{GuildID: guildC, ActorID: actor}, ctl)
	assert.Equal(t, OutcomeDone, res.Outcome)
	require.Len(t, env.enforcer.calls, 1)
	assert.Equal(t, ActionUnban, env.enforcer.calls[0].kind)
	assert.Equal(t, SelfReason(testMarker, "Unban confirmed by admin"), env.enforcer.calls[0].reason)
	assert.Equal(t, []string{"control_unbanned"}, ctl.labels)

	ban, err := env.bans.GetBan(ctx, guildC, userU)
	require.NoError(t, err)
	assert.Nil(t, ban)

	res = env.confirmer.HandleConfirmation(ctx, EncodeToken(ActionUnban, userU, nil), GuildContext{GuildID: guildC, ActorID: actor}, ctl)
	assert.Equal(t, OutcomeAlreadyActioned, res.Outcome)
	assert.Equal(t, 1, env.enforcer.callCount())
	assert.Equal(t, "control_already", ctl.labels[len(ctl.labels)-1])
}

func TestConfirmIgnoresForeignTokens(t *testing.T) {
	env := newTestEnv(t)
	for _, raw := range []string{"", "done", "lang:en", "ban:12"} {
		res := env.confirmer.HandleConfirmation(context.Background(), raw, GuildContext{GuildID: guildC, ActorID: actor}, nil)
		assert.Equal(t, OutcomeNotRecognized, res.Outcome, raw)
		assert.ErrorIs(t, res.Err, ErrValidation)
	}
	assert.Zero(t, env.enforcer.callCount())
}

func TestConfirmSurvivesControlFailure(t *testing.T) {
	env := newTestEnv(t)
	token, _ := sourceBan(t, env)
	ctl := &fakeControl{err: errors.New("Bad Request: message is not modified")}

	res := env.confirmer.HandleConfirmation(context.Background(), token, GuildContext{GuildID: guildC, ActorID: actor}, ctl)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.NoError(t, res.Err)
}
