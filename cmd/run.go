package cmd

import (
	"context"
	"fmt"

	"cybot/bot"
	"cybot/config"
	"cybot/domain/interfaces"
	"cybot/jokes"
	"cybot/lang"
	"cybot/repository"
	"cybot/roomwatch"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
	}

	// Load language packs
	langs, err := lang.Load(cfg.LangDir, cfg.DefaultLang)
	if err != nil {
		return fmt.Errorf("failed to load language packs: %w", err)
	}
	log.Infof("Loaded %d language pack(s), default %s", len(langs.Codes()), langs.DefaultCode())

	// Initialize config store
	store, err := repository.NewGuildConfigStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize config store: %w", err)
	}

	// Initialize collaborators
	dialer := roomwatch.NewWSDialer(cfg.RoomServerURL)
	newWatcher := func(onLost func(room string, err error)) interfaces.RoomWatcher {
		return roomwatch.NewSupervisor(dialer, onLost)
	}
	jokeClient := jokes.NewClient(cfg.JokeAPIURL)

	// Initialize Discord bot
	botConfig := bot.Config{
		Token:         cfg.DiscordToken,
		ClientID:      cfg.ClientID,
		DefaultLang:   cfg.DefaultLang,
		DefaultPrefix: cfg.DefaultPrefix,
	}
	discordBot, err := bot.New(botConfig, store, langs, jokeClient, newWatcher)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	if err := discordBot.Start(); err != nil {
		return fmt.Errorf("failed to start Discord bot: %w", err)
	}

	// Wait for context cancellation
	log.Infof("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	log.Info("Shutting down bot...")
	discordBot.Close()
	return nil
}
