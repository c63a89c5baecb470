package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"tg-banshare/internal/config"
	"tg-banshare/internal/models"
	"tg-banshare/internal/service"
	"tg-banshare/internal/storage"
)

func main() {
	app := cli.App{
		Name:  "dbmigrate",
		Usage: "database and whitelist administration for the ban sharing bot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/config.yaml",
				Usage:   "path to configuration file",
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "migrate",
			Usage:  "create or update the tables",
			Action: runMigrate,
		},
		{
			Name:   "status",
			Usage:  "show which tables exist and how many rows they hold",
			Action: runStatus,
		},
		{
			Name:  "reset",
			Usage: "drop every table and recreate it",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "yes", Usage: "do not ask for confirmation"},
			},
			Action: runReset,
		},
		{
			Name:  "whitelist",
			Usage: "manage the groups the bot may operate in",
			Subcommands: []*cli.Command{
				{
					Name:      "add",
					Usage:     "allow a group",
					ArgsUsage: "<chat_id>",
					Action:    runWhitelistAdd,
				},
				{
					Name:      "remove",
					Usage:     "forget a group and every ban recorded in it",
					ArgsUsage: "<chat_id>",
					Flags: []cli.Flag{
						&cli.BoolFlag{Name: "leave", Usage: "make the bot leave the group as well"},
					},
					Action: runWhitelistRemove,
				},
				{
					Name:   "list",
					Usage:  "list whitelisted groups",
					Action: runWhitelistList,
				},
			},
		},
		{
			Name:  "bans",
			Usage: "inspect recorded bans",
			Subcommands: []*cli.Command{
				{
					Name:      "list",
					Usage:     "list the bans of a group",
					ArgsUsage: "<chat_id>",
					Action:    runBansList,
				},
				{
					Name:      "trace",
					Usage:     "follow a ban back to the ban it was propagated from",
					ArgsUsage: "<ban_id>",
					Action:    runBansTrace,
				},
			},
		},
	}
	app.RunAndExitOnError()
}

func openDB(cctx *cli.Context) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(cctx.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := storage.Initialize(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func chatIDArg(cctx *cli.Context) (int64, error) {
	s := cctx.Args().First()
	if s == "" {
		return 0, fmt.Errorf("need to provide a chat id as an argument")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id >= 0 {
		return 0, fmt.Errorf("invalid group chat id %q", s)
	}
	return id, nil
}

func runMigrate(cctx *cli.Context) error {
	_, db, err := openDB(cctx)
	if err != nil {
		return err
	}
	fmt.Println("Migrating database...")
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println("Migration completed successfully")
	return nil
}

func runStatus(cctx *cli.Context) error {
	_, db, err := openDB(cctx)
	if err != nil {
		return err
	}
	fmt.Println("Checking database status...")

	tables := []struct {
		name  string
		model interface{}
	}{
		{"guilds", &models.Guild{}},
		{"users", &models.User{}},
		{"bans", &models.Ban{}},
	}
	for _, table := range tables {
		if !db.Migrator().HasTable(table.model) {
			fmt.Printf("❌ %s table does not exist\n", table.name)
			continue
		}
		var count int64
		if err := db.Model(table.model).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s: %w", table.name, err)
		}
		fmt.Printf("✅ %s table exists\n   - Contains %d records\n", table.name, count)
	}
	return nil
}

func runReset(cctx *cli.Context) error {
	_, db, err := openDB(cctx)
	if err != nil {
		return err
	}
	fmt.Println("Resetting database...")

	if !cctx.Bool("yes") {
		fmt.Print("WARNING: This will delete all data! Are you sure? (y/N): ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			return fmt.Errorf("operation cancelled by user")
		}
	}

	// bans reference guilds and users
	if err := db.Migrator().DropTable(&models.Ban{}, &models.User{}, &models.Guild{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to recreate tables: %w", err)
	}
	fmt.Println("Database reset completed successfully")
	return nil
}

func runWhitelistAdd(cctx *cli.Context) error {
	id, err := chatIDArg(cctx)
	if err != nil {
		return err
	}
	_, db, err := openDB(cctx)
	if err != nil {
		return err
	}

	added, err := service.NewGuildService(storage.NewGuildRepository(db)).Whitelist(cctx.Context, id)
	if err != nil {
		return err
	}
	if added {
		fmt.Printf("Group %d whitelisted. Add the bot to it as an administrator.\n", id)
	} else {
		fmt.Printf("Group %d was already whitelisted\n", id)
	}
	return nil
}

func runWhitelistRemove(cctx *cli.Context) error {
	id, err := chatIDArg(cctx)
	if err != nil {
		return err
	}
	cfg, db, err := openDB(cctx)
	if err != nil {
		return err
	}

	if err := service.NewGuildService(storage.NewGuildRepository(db)).Unwhitelist(cctx.Context, id); err != nil {
		return err
	}
	fmt.Printf("Group %d removed together with its bans\n", id)

	if cctx.Bool("leave") {
		if err := leaveChat(cctx.Context, cfg.Bot.Token, id); err != nil {
			return fmt.Errorf("group removed but the bot could not leave it: %w", err)
		}
		fmt.Println("The bot left the group")
	}
	return nil
}

func leaveChat(ctx context.Context, token string, chatID int64) error {
	bot, err := telego.NewBot(token)
	if err != nil {
		return err
	}
	return bot.LeaveChat(ctx, &telego.LeaveChatParams{ChatID: telego.ChatID{ID: chatID}})
}

func runWhitelistList(cctx *cli.Context) error {
	_, db, err := openDB(cctx)
	if err != nil {
		return err
	}
	guilds, err := storage.NewGuildRepository(db).ListGuilds(cctx.Context)
	if err != nil {
		return err
	}
	bans := storage.NewBanRepository(db)

	if len(guilds) == 0 {
		fmt.Println("No whitelisted groups")
		return nil
	}
	for _, g := range guilds {
		n, err := bans.CountGuildBans(cctx.Context, g.ID)
		if err != nil {
			return err
		}
		state := "not joined"
		if g.Joined() {
			state = "joined"
		}
		alerts := "-"
		if g.AlertChannelID != nil {
			alerts = strconv.FormatInt(*g.AlertChannelID, 10)
		}
		fmt.Printf("%d\t%s\t%s\talerts=%s\tbroadcast=%t\tlang=%s\tbans=%d\n",
			g.ID, g.DisplayName(), state, alerts, g.BroadcastEnabled, g.Language, n)
	}
	return nil
}

func runBansList(cctx *cli.Context) error {
	id, err := chatIDArg(cctx)
	if err != nil {
		return err
	}
	_, db, err := openDB(cctx)
	if err != nil {
		return err
	}
	bans, err := storage.NewBanRepository(db).ListGuildBans(cctx.Context, id)
	if err != nil {
		return err
	}
	for _, b := range bans {
		printBan(b)
	}
	fmt.Printf("%d bans\n", len(bans))
	return nil
}

func runBansTrace(cctx *cli.Context) error {
	s := cctx.Args().First()
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ban id %q", s)
	}
	_, db, err := openDB(cctx)
	if err != nil {
		return err
	}
	chain, err := storage.NewBanRepository(db).ProvenanceChain(cctx.Context, uint(id))
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return fmt.Errorf("ban %d not found", id)
	}
	for i, b := range chain {
		fmt.Printf("%s", strings.Repeat("  ", i))
		printBan(b)
	}
	return nil
}

func printBan(b *models.Ban) {
	by := "-"
	if b.BannedBy != nil {
		by = strconv.FormatInt(*b.BannedBy, 10)
	}
	fmt.Printf("#%d\tgroup=%d\tuser=%d\tat=%s\tby=%s\treason=%q\n",
		b.ID, b.GuildID, b.UserID, b.BannedAt.Format("2006-01-02 15:04:05"), by, b.ReasonText())
}
