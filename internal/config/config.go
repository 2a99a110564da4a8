package config

import (
	"encoding/json"
	"os"
)

// Config is the on-disk configuration for the companion. Runtime-mutable
// widget state (counters, last events, per-widget settings) lives in the
// sqlite store, not here.
type Config struct {
	Channel  string `json:"channel"`
	Username string `json:"username"`
	Token    string `json:"token"`

	TwitchClientID     string `json:"twitchClientId,omitempty"`
	TwitchClientSecret string `json:"twitchClientSecret,omitempty"`

	ClipCooldownSeconds int `json:"clipCooldown"`

	GiveawayCommand      string `json:"giveawayCommand"`
	GiveawayStartMessage string `json:"giveawayStartMessage"`
	GiveawayStopMessage  string `json:"giveawayStopMessage"`
	GiveawayWinMessage   string `json:"giveawayWinMessage"`

	AutoMessages []AutoMessage `json:"autoMessages,omitempty"`

	RewardFunctions    map[string]string `json:"rewardFunctions,omitempty"`
	RewardSounds       map[string]string `json:"rewardSounds,omitempty"`
	PointsGlobalVolume float64           `json:"pointsGlobalVolume"`

	StreamlabsToken string `json:"streamlabsToken,omitempty"`

	Spotify SpotifySettings `json:"spotify"`

	Widgets WidgetPorts `json:"widgets"`

	Discord DiscordSettings `json:"discord"`

	Dashboard DashboardSettings `json:"dashboard"`

	Logger LoggerSettings `json:"logger"`

	ReconnectDelaySeconds int `json:"reconnectDelay"`
}

type AutoMessage struct {
	Message  string `json:"message"`
	Interval int    `json:"interval"`
}

type SpotifySettings struct {
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	PollSeconds  int    `json:"pollSeconds"`
}

type WidgetPorts struct {
	Chat     int `json:"chatPort"`
	Alerts   int `json:"alertsPort"`
	Subgoals int `json:"subgoalsPort"`
	Roulette int `json:"roulettePort"`
	Spotify  int `json:"spotifyPort"`
}

type DiscordSettings struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"botToken,omitempty"`
	ChannelID string `json:"channelId,omitempty"`
}

type DashboardSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type LoggerSettings struct {
	Save         bool   `json:"save"`
	ConsoleLevel string `json:"consoleLevel"`
	FileLevel    string `json:"fileLevel"`
	AutoClear    bool   `json:"autoClear"`
}

func DefaultConfig() Config {
	return Config{
		ClipCooldownSeconds:   30,
		GiveawayCommand:       "!giveaway",
		GiveawayStartMessage:  "Le giveaway commence ! Tapez !giveaway pour participer.",
		GiveawayStopMessage:   "Le giveaway est terminé !",
		GiveawayWinMessage:    "Félicitations {winner} !",
		PointsGlobalVolume:    0.5,
		ReconnectDelaySeconds: 5,
		Spotify: SpotifySettings{
			PollSeconds: 5,
		},
		Widgets: WidgetPorts{
			Chat:     8092,
			Alerts:   8097,
			Subgoals: 8091,
			Roulette: 8093,
			Spotify:  8090,
		},
		Dashboard: DashboardSettings{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Logger: DefaultLoggerSettings(),
	}
}

func DefaultLoggerSettings() LoggerSettings {
	return LoggerSettings{
		Save:         true,
		ConsoleLevel: "INFO",
		FileLevel:    "DEBUG",
		AutoClear:    true,
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	validateConfig(&config)
	return &config, nil
}

func SaveConfig(path string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func validateConfig(config *Config) {
	if config.ClipCooldownSeconds < 5 {
		config.ClipCooldownSeconds = 5
	} else if config.ClipCooldownSeconds > 600 {
		config.ClipCooldownSeconds = 600
	}

	if config.ReconnectDelaySeconds < 1 {
		config.ReconnectDelaySeconds = 1
	} else if config.ReconnectDelaySeconds > 60 {
		config.ReconnectDelaySeconds = 60
	}

	if config.PointsGlobalVolume < 0 {
		config.PointsGlobalVolume = 0
	} else if config.PointsGlobalVolume > 1 {
		config.PointsGlobalVolume = 1
	}

	if config.Spotify.PollSeconds < 2 {
		config.Spotify.PollSeconds = 2
	} else if config.Spotify.PollSeconds > 60 {
		config.Spotify.PollSeconds = 60
	}

	if config.GiveawayCommand == "" {
		config.GiveawayCommand = "!giveaway"
	}

	for i := range config.AutoMessages {
		if config.AutoMessages[i].Interval <= 0 {
			config.AutoMessages[i].Interval = 40
		}
	}
}
