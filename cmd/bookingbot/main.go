package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"bookingbot/internal/booking"
	"bookingbot/internal/catalog"
	"bookingbot/internal/config"
	"bookingbot/internal/dialog"
	"bookingbot/internal/reminder"
	"bookingbot/internal/session"
	"bookingbot/internal/storage"
	"bookingbot/internal/telegram"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Unknown business timezone")
	}

	catCfg := catalog.DefaultConfig()
	if cfg.CatalogPath != "" {
		catCfg, err = catalog.LoadConfig(cfg.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to load catalog")
		}
	}
	cat := catalog.New(catCfg, func() time.Time { return time.Now().In(loc) })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open reservation store")
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("Reservation store ready")

	engine := booking.New(cat, store, cfg.StoreTimeout,
		log.With().Str("component", "booking").Logger())
	sessions := session.NewStore()
	machine := dialog.New(cat, engine, sessions,
		log.With().Str("component", "dialog").Logger())

	bot, err := telegram.NewService(cfg.TelegramToken, machine,
		log.With().Str("component", "telegram").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}

	worker := reminder.New(store, bot, cfg.ReminderLead, cfg.ReminderInterval, loc,
		log.With().Str("component", "reminder").Logger())
	go worker.Run(ctx)

	log.Info().Msg("Booking bot is running")
	if err := bot.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped with error")
	}

	if closer, ok := store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	log.Info().Msg("Goodbye")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StoreBackend == config.StoreSheets {
		return storage.NewSheetsStore(ctx, cfg.GoogleCredentials, cfg.SpreadsheetID, cfg.SheetName)
	}
	return storage.NewSQLiteStore(cfg.SQLitePath)
}
