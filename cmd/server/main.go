// Command server runs the Starlit Journals API.
//
// STARTUP ORDER:
//  1. Configuration (.env + environment) and the logger.
//  2. Database: open, ping, migrate.
//  3. Mail catalog: embedded defaults, a local file, or S3.
//  4. Engine, auth, mailer, services, handlers.
//  5. HTTP server plus the expired-mail sweeper, until SIGINT/SIGTERM.
//
// Any failure before step 5 exits non-zero; a half-configured server is
// worse than none.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/starlit/internal/auth"
	"github.com/sakif/starlit/internal/catalog"
	"github.com/sakif/starlit/internal/config"
	"github.com/sakif/starlit/internal/engagement"
	"github.com/sakif/starlit/internal/handler"
	"github.com/sakif/starlit/internal/mailer"
	"github.com/sakif/starlit/internal/repository/sqlstore"
	"github.com/sakif/starlit/internal/server"
	"github.com/sakif/starlit/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	ctx := context.Background()

	dsn := cfg.DatabaseURL
	if cfg.DBDriver == "sqlite" {
		dsn = cfg.DBPath
		if dsn != ":memory:" {
			// SQLite creates the file but not its directory.
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return err
			}
		}
	}
	store, err := sqlstore.Open(ctx, cfg.DBDriver, dsn, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cat, err := catalog.Load(ctx,
		catalog.Sources{Templates: cfg.CatalogSource, Stories: cfg.StorySource},
		catalog.S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
	)
	if err != nil {
		return err
	}
	logger.Info("mail catalog loaded",
		slog.String("templates", sourceName(cfg.CatalogSource)),
		slog.String("stories", sourceName(cfg.StorySource)),
		slog.Int("storyCount", len(cat.StoryNames())),
	)

	policy, err := engagement.ParseMilestonePolicy(cfg.MilestonePolicy)
	if err != nil {
		return err
	}
	engine := engagement.New(cat, engagement.DefaultRand(), engagement.Config{
		Location:         cfg.DayLocation,
		MaxMailsPerLogin: cfg.MaxMailsPerLogin,
		MilestonePolicy:  policy,
	}, logger)

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordService()

	mail, err := mailer.New(ctx, cfg.SESRegion, cfg.SESFromEmail, cfg.SESFromName, logger)
	if err != nil {
		return err
	}

	accounts := service.NewAccountService(store, engine, tokens, passwords, cat, mail, logger)
	journals := service.NewJournalService(store, engine, logger)
	mails := service.NewMailService(store, logger)

	srv := server.New(server.Config{
		Port:          cfg.Port,
		SweepInterval: cfg.MailSweepEvery,
	}, server.Deps{
		Accounts: handler.NewAccountHandler(accounts, tokens.TTL(), cfg.CookieSecure, logger),
		Journals: handler.NewJournalHandler(journals, logger),
		Mails:    handler.NewMailHandler(mails, logger),
		Tokens:   tokens,
		DB:       store,
		Sweeper:  mails,
	}, logger)

	return srv.Start()
}

// newLogger builds the process logger. Text is easier to read in a
// terminal; JSON is what log shippers want.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func sourceName(src string) string {
	if src == "" {
		return "embedded"
	}
	return src
}
