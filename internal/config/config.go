package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "GALLERY"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultCatalogPath     = "image-list.json"
	defaultLogLevel        = "info"
	defaultMaxResolution   = 2048
	defaultProcessedMarker = "✅"
	defaultRemovalMarkerA  = "❌"
	defaultRemovalMarkerB  = "🚫"
)

// AppConfig captures runtime configuration for the gallery bot.
type AppConfig struct {
	DiscordToken    string
	PhotoChannelID  string
	LogChannelID    string
	CatalogPath     string
	MaxResolution   int
	RemovalMarkers  []string
	ProcessedMarker string
	HTTPAddress     string
	LogLevel        string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("catalog.path", defaultCatalogPath)
	configViper.SetDefault("catalog.max_resolution", defaultMaxResolution)
	configViper.SetDefault("markers.removal", []string{defaultRemovalMarkerA, defaultRemovalMarkerB})
	configViper.SetDefault("markers.processed", defaultProcessedMarker)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		DiscordToken:    configViper.GetString("discord.token"),
		PhotoChannelID:  configViper.GetString("discord.photo_channel_id"),
		LogChannelID:    configViper.GetString("discord.log_channel_id"),
		CatalogPath:     configViper.GetString("catalog.path"),
		MaxResolution:   configViper.GetInt("catalog.max_resolution"),
		RemovalMarkers:  configViper.GetStringSlice("markers.removal"),
		ProcessedMarker: configViper.GetString("markers.processed"),
		HTTPAddress:     configViper.GetString("http.address"),
		LogLevel:        configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DiscordToken) == "" {
		return fmt.Errorf("discord.token is required")
	}
	if strings.TrimSpace(c.PhotoChannelID) == "" {
		return fmt.Errorf("discord.photo_channel_id is required")
	}
	if strings.TrimSpace(c.CatalogPath) == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if c.MaxResolution <= 0 {
		return fmt.Errorf("catalog.max_resolution must be positive")
	}
	if len(c.RemovalMarkers) == 0 {
		return fmt.Errorf("markers.removal requires at least one symbol")
	}
	if strings.TrimSpace(c.ProcessedMarker) == "" {
		return fmt.Errorf("markers.processed is required")
	}
	return nil
}
