package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fotogalerie/gallerybot/internal/catalog"
	"github.com/fotogalerie/gallerybot/internal/config"
	"github.com/fotogalerie/gallerybot/internal/logging"
	"github.com/fotogalerie/gallerybot/internal/media"
	"github.com/fotogalerie/gallerybot/internal/reconcile"
	"github.com/fotogalerie/gallerybot/internal/server"
	"github.com/fotogalerie/gallerybot/internal/stream/discord"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gallerybot",
		Short: "Discord photo gallery catalog service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("discord-token", "", "Discord bot token (overrides env)")
	cmd.PersistentFlags().String("photo-channel-id", defaults.GetString("discord.photo_channel_id"), "Channel ID watched for photos")
	cmd.PersistentFlags().String("log-channel-id", defaults.GetString("discord.log_channel_id"), "Channel ID for operational notices")
	cmd.PersistentFlags().String("catalog-path", defaults.GetString("catalog.path"), "Path of the persisted catalog document")
	cmd.PersistentFlags().Int("max-resolution", defaults.GetInt("catalog.max_resolution"), "Resolution bound for display URLs")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "discord.token", "discord-token")
	bindFlag(cmd, "discord.photo_channel_id", "photo-channel-id")
	bindFlag(cmd, "discord.log_channel_id", "log-channel-id")
	bindFlag(cmd, "catalog.path", "catalog-path")
	bindFlag(cmd, "catalog.max_resolution", "max-resolution")
	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		// An explicitly requested file must load; the implicit lookup may
		// simply find nothing.
		if cfgFile != "" {
			return err
		}
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runBot(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	snapshotFile, err := catalog.NewSnapshotFile(appConfig.CatalogPath)
	if err != nil {
		return err
	}
	seed, err := snapshotFile.Load()
	if err != nil {
		logger.Warn("previous snapshot unreadable, starting empty", zap.Error(err))
		seed = nil
	}

	dispatcher := server.NewRealtimeDispatcher()
	store, err := catalog.NewStore(catalog.StoreConfig{
		Persister: snapshotFile,
		Notifier:  dispatcher,
		Logger:    logger,
		Seed:      seed,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("final catalog persist failed", zap.Error(err))
		}
	}()

	codec, err := catalog.NewCodec(catalog.CodecConfig{
		Downloader:    media.NewFetcher(media.FetcherConfig{}),
		Dimensions:    media.Dimensions,
		MaxResolution: appConfig.MaxResolution,
	})
	if err != nil {
		return err
	}

	session, err := discord.NewSession(discord.SessionConfig{
		Token:  appConfig.DiscordToken,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	if err := session.Open(); err != nil {
		return err
	}
	defer session.Close() //nolint:errcheck

	channels := config.NewChannels(appConfig.PhotoChannelID, appConfig.LogChannelID)
	announcer := discord.NewAnnouncer(session, channels, logger)

	// Without the photo channel neither ingestion nor backfill has a
	// target, so this lookup is the only fatal transport failure.
	channelName, err := session.ChannelName(ctx, channels.PhotoID())
	if err != nil {
		return fmt.Errorf("photo channel unavailable: %w", err)
	}
	logger.Info("watching photo channel",
		zap.String("channel_id", channels.PhotoID()),
		zap.String("channel_name", channelName))

	selfID, err := session.SelfID()
	if err != nil {
		return err
	}

	markers := reconcile.Markers{
		Removal:   appConfig.RemovalMarkers,
		Processed: appConfig.ProcessedMarker,
	}

	ingestor, err := reconcile.NewIngestor(reconcile.IngestorConfig{
		Store:    store,
		Codec:    codec,
		Marker:   session,
		Markers:  markers,
		Channels: channels,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	manager, err := reconcile.NewManager(reconcile.ManagerConfig{
		History:  session,
		Store:    store,
		Codec:    codec,
		Marker:   session,
		Markers:  markers,
		Channels: channels,
		SelfID:   selfID,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	// Live handlers attach before the sweeps; racing them is safe because
	// upsert is keyed and idempotent.
	session.OnMessageCreate(ingestor.HandleMessage)
	session.OnReactionAdd(manager.HandleReactionAdd)
	session.OnReactionRemove(manager.HandleReactionRemove)

	if err := session.RegisterAdminCommand(channels, announcer); err != nil {
		logger.Error("admin command registration failed", zap.Error(err))
	}

	scanner, err := reconcile.NewScanner(reconcile.ScannerConfig{
		History: session,
		Store:   store,
		Codec:   codec,
		Marker:  session,
		Markers: markers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	processed, err := scanner.Scan(ctx, channels.PhotoID())
	if err != nil {
		logger.Error("backfill sweep failed", zap.Error(err))
	}
	announcer.Announce(ctx, fmt.Sprintf("Backfill complete: %d new images cataloged.", processed))

	validator, err := reconcile.NewValidator(reconcile.ValidatorConfig{
		History: session,
		Store:   store,
		Marker:  session,
		Markers: markers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	kept, droppedCount, err := validator.Sweep(ctx, channels.PhotoID())
	if err != nil {
		logger.Error("validation sweep failed", zap.Error(err))
	}
	if droppedCount > 0 {
		announcer.Announce(ctx, fmt.Sprintf("Validation dropped %d stale entries, %d remain.", droppedCount, kept))
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Catalog:  store,
		Realtime: dispatcher,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("shutting down, persisting final snapshot")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
