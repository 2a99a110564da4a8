package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zexaal/stream-companion/internal/alerts"
	"github.com/zexaal/stream-companion/internal/bot"
	"github.com/zexaal/stream-companion/internal/config"
	"github.com/zexaal/stream-companion/internal/dashboard"
	"github.com/zexaal/stream-companion/internal/database"
	"github.com/zexaal/stream-companion/internal/donations"
	"github.com/zexaal/stream-companion/internal/events"
	"github.com/zexaal/stream-companion/internal/logger"
	"github.com/zexaal/stream-companion/internal/notifications"
	"github.com/zexaal/stream-companion/internal/spotify"
	"github.com/zexaal/stream-companion/internal/store"
	"github.com/zexaal/stream-companion/internal/twitch"
	"github.com/zexaal/stream-companion/internal/version"
	"github.com/zexaal/stream-companion/internal/widgets"
)

var (
	configFile = flag.String("config", "config.json", "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	dev        = flag.Bool("dev", false, "Queue sample alerts on startup for overlay testing")
	genConfig  = flag.Bool("generate-config", false, "Generate a sample configuration file")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		setupBasicLogger(*debug)
		slog.Warn("Failed to load .env file", "error", err)
	}

	if *genConfig {
		setupBasicLogger(*debug)
		generateSampleConfig()
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		setupBasicLogger(*debug)
		if os.IsNotExist(err) {
			slog.Error("Configuration file not found. Run with -generate-config to create a sample", "path", *configFile)
		} else {
			slog.Error("Failed to load configuration", "error", err)
		}
		os.Exit(1)
	}

	if cfg.Channel == "" || cfg.Username == "" || cfg.Token == "" {
		setupBasicLogger(*debug)
		slog.Error("channel, username and token are required in configuration")
		os.Exit(1)
	}

	logSettings := cfg.Logger
	if *debug {
		logSettings.ConsoleLevel = "DEBUG"
		logSettings.FileLevel = "DEBUG"
	}

	log, err := logger.Setup(cfg.Channel, logSettings)
	if err != nil {
		setupBasicLogger(*debug)
		slog.Error("Failed to setup logger", "error", err)
		os.Exit(1)
	}
	defer log.Close()

	slog.Info("Stream Companion", "version", version.Version, "channel", cfg.Channel)

	db, err := database.Open("data")
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st, err := store.New(db)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}

	api, err := twitch.NewAPI(cfg.Token, cfg.Channel, cfg.TwitchClientSecret)
	if err != nil {
		slog.Error("Failed to connect to Twitch API", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	defer bus.Close()

	router := widgets.NewRouter(cfg.Widgets, st, bus)
	if err := router.Start(); err != nil {
		slog.Error("Failed to start widget servers", "error", err)
		os.Exit(1)
	}
	defer router.Stop()

	b := bot.New(cfg, api, st, bus, router, router.Queue)

	notifier := notifications.NewDiscordNotifier(cfg.Discord)
	if notifier.IsConfigured() {
		if err := notifier.Connect(); err != nil {
			slog.Warn("Discord notifications unavailable", "error", err)
		} else {
			b.SetNotifier(notifier)
			defer notifier.Disconnect()
		}
	}

	if err := b.Start(); err != nil {
		slog.Error("Failed to start bot", "error", err)
		os.Exit(1)
	}
	defer b.Stop()

	streamlabs := donations.NewClient(cfg.StreamlabsToken, b)
	if err := streamlabs.Start(); err != nil {
		slog.Warn("Donations feed unavailable", "error", err)
	}
	defer streamlabs.Stop()

	nowPlaying := spotify.NewPoller(cfg.Spotify, st, bus)
	nowPlaying.Start()
	defer nowPlaying.Stop()

	dash := dashboard.NewServer(cfg, b, st, router)
	dash.Start()
	defer dash.Stop()

	if *dev {
		queueSampleAlerts(b)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down")
}

// queueSampleAlerts pushes one alert of each type so the overlay can be
// styled without waiting for real events.
func queueSampleAlerts(b *bot.Bot) {
	samples := []alerts.Trigger{
		{Type: "follow", Username: "TestViewer"},
		{Type: "sub", Username: "TestSub"},
		{Type: "resub", Username: "TestResub", Months: 12, Message: "Toujours là !"},
		{Type: "subgift", Username: "TestGifter", Amount: 5},
		{Type: "cheer", Username: "TestCheerer", Amount: 500},
		{Type: "raid", Username: "TestRaider", Amount: 42},
	}
	for _, t := range samples {
		b.TriggerAlert(t)
	}
}

func setupBasicLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func generateSampleConfig() {
	cfg := config.DefaultConfig()
	cfg.Channel = "your_channel"
	cfg.Username = "your_bot_account"
	cfg.Token = "your_oauth_token"
	cfg.AutoMessages = []config.AutoMessage{
		{Message: "Pense à follow la chaîne !", Interval: 40},
	}

	if err := config.SaveConfig("config.sample.json", &cfg); err != nil {
		slog.Error("Failed to save sample configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Sample configuration generated", "path", "config.sample.json")
	fmt.Println("\nSample configuration saved to config.sample.json")
	fmt.Println("Rename it to config.json and update with your settings")
}
