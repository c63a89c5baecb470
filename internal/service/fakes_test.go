package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tg-banshare/internal/config"
	"tg-banshare/internal/models"
	"tg-banshare/internal/storage"
)

const testMarker = "BanShare"

type pair struct{ guild, user int64 }

type fakeDirectory struct {
	mu        sync.Mutex
	unusable  map[int64]bool
	checkErr  map[int64]error
	members   map[pair]bool
	memberErr error
	banned    map[pair]bool
	bannedErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		unusable: make(map[int64]bool),
		checkErr: make(map[int64]error),
		members:  make(map[pair]bool),
		banned:   make(map[pair]bool),
	}
}

func (d *fakeDirectory) CheckAlertChannel(_ context.Context, chatID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unusable[chatID] {
		return fmt.Errorf("%w: chat %d is a private chat", ErrChannelUnusable, chatID)
	}
	return d.checkErr[chatID]
}

func (d *fakeDirectory) IsMember(_ context.Context, guildID, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.memberErr != nil {
		return false, d.memberErr
	}
	return d.members[pair{guildID, userID}], nil
}

func (d *fakeDirectory) IsBanned(_ context.Context, guildID, userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bannedErr != nil {
		return false, d.bannedErr
	}
	return d.banned[pair{guildID, userID}], nil
}

func (d *fakeDirectory) setBanned(guildID, userID int64, banned bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.banned[pair{guildID, userID}] = banned
}

type enforceCall struct {
	kind   ActionKind
	guild  int64
	user   int64
	reason string
}

type fakeEnforcer struct {
	mu    sync.Mutex
	dir   *fakeDirectory
	calls []enforceCall
	err   error
	// entered and release let a test hold an enforcement call open.
	entered chan struct{}
	release chan struct{}
}

func (e *fakeEnforcer) do(ctx context.Context, kind ActionKind, guildID, userID int64, reason string) error {
	e.mu.Lock()
	e.calls = append(e.calls, enforceCall{kind, guildID, userID, reason})
	err := e.err
	entered, release := e.entered, e.release
	e.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return err
	}
	e.dir.setBanned(guildID, userID, kind == ActionBan)
	return nil
}

func (e *fakeEnforcer) Ban(ctx context.Context, guildID, userID int64, reason string) error {
	return e.do(ctx, ActionBan, guildID, userID, reason)
}

func (e *fakeEnforcer) Unban(ctx context.Context, guildID, userID int64, reason string) error {
	return e.do(ctx, ActionUnban, guildID, userID, reason)
}

func (e *fakeEnforcer) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type sentAlert struct {
	recipient int64
	chatID    int64
	alert     Alert
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentAlert
	failFor map[int64]error
}

func (s *fakeSender) SendAlert(_ context.Context, recipient *models.Guild, chatID int64, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[recipient.ID]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentAlert{recipient.ID, chatID, alert})
	return nil
}

func (s *fakeSender) to(guildID int64) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, a := range s.sent {
		if a.recipient == guildID {
			out = append(out, a.alert)
		}
	}
	return out
}

func (s *fakeSender) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeControl struct {
	mu     sync.Mutex
	labels []string
	err    error
}

func (c *fakeControl) Disable(_ context.Context, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = append(c.labels, label)
	return c.err
}

// countingBans counts writes and can fail a number of them.
type countingBans struct {
	*storage.BanRepository
	mu          sync.Mutex
	records     int
	removals    int
	failRecords int
	failRemoves int
}

func (b *countingBans) RecordBan(ctx context.Context, in models.BanInput) (uint, error) {
	b.mu.Lock()
	if b.failRecords > 0 {
		b.failRecords--
		b.mu.Unlock()
		return 0, fmt.Errorf("database is locked")
	}
	b.records++
	b.mu.Unlock()
	return b.BanRepository.RecordBan(ctx, in)
}

func (b *countingBans) RemoveBan(ctx context.Context, guildID, userID int64) (*models.Ban, error) {
	b.mu.Lock()
	if b.failRemoves > 0 {
		b.failRemoves--
		b.mu.Unlock()
		return nil, fmt.Errorf("database is locked")
	}
	b.removals++
	b.mu.Unlock()
	return b.BanRepository.RemoveBan(ctx, guildID, userID)
}

func (b *countingBans) recordCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.records
}

type testEnv struct {
	guilds    *storage.GuildRepository
	bans      *countingBans
	dir       *fakeDirectory
	enforcer  *fakeEnforcer
	sender    *fakeSender
	coord     *Coordinator
	service   *BanService
	confirmer *Confirmer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Logger:   config.LoggerConfig{Level: "WARNING"},
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bans.db")},
	}
	db, err := storage.Initialize(cfg)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		guilds: storage.NewGuildRepository(db),
		bans:   &countingBans{BanRepository: storage.NewBanRepository(db)},
		dir:    newFakeDirectory(),
		sender: &fakeSender{failFor: make(map[int64]error)},
	}
	env.enforcer = &fakeEnforcer{dir: env.dir}
	env.coord = NewCoordinator(env.guilds, env.bans, env.dir, env.sender, 4)
	env.service = NewBanService(env.guilds, env.bans, env.coord, testMarker)
	env.confirmer = NewConfirmer(env.bans, env.dir, env.enforcer, testMarker)
	return env
}

// addGuild registers a joined guild. alertChat 0 leaves alerts unconfigured.
func (e *testEnv) addGuild(t *testing.T, id int64, name string, broadcast bool, alertChat int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.guilds.Whitelist(ctx, id)
	require.NoError(t, err)
	require.NoError(t, e.guilds.MarkJoined(ctx, id, name, time.Now()))
	require.NoError(t, e.guilds.SetBroadcast(ctx, id, broadcast))
	if alertChat != 0 {
		require.NoError(t, e.guilds.SetAlertChannel(ctx, id, &alertChat))
	}
}
