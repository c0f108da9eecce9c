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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Murmur/internal/adapters/api"
	"github.com/dkeye/Murmur/internal/adapters/capture"
	router "github.com/dkeye/Murmur/internal/adapters/http"
	"github.com/dkeye/Murmur/internal/adapters/relay"
	"github.com/dkeye/Murmur/internal/adapters/rtc"
	"github.com/dkeye/Murmur/internal/app/chat"
	"github.com/dkeye/Murmur/internal/app/voice"
	"github.com/dkeye/Murmur/internal/config"
	"github.com/dkeye/Murmur/internal/domain"
	"github.com/dkeye/Murmur/internal/protocol"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	user, err := domain.NewUser(cfg.User.ID, cfg.User.Name)
	if err != nil {
		log.Fatal().Err(err).Str("name", cfg.User.Name).Msg("invalid user")
	}

	relays := relay.NewRegistry(ctx, relay.Options{
		URL:          cfg.Relay.URL,
		PingPeriod:   cfg.Relay.PingPeriod,
		ReadLimit:    cfg.Relay.ReadLimit,
		ReconnectMin: cfg.Relay.ReconnectMin,
		ReconnectMax: cfg.Relay.ReconnectMax,
		SendBuffer:   cfg.Relay.SendBuffer,
	})
	defer relays.Close()

	factory, err := rtc.NewFactory(rtc.DefaultWebRTCConfig(cfg.Voice.ICEServers))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build media factory")
	}

	coordinator := voice.NewCoordinator(
		relays.Channel(protocol.NamespaceVoice),
		factory,
		capture.NewSource(cfg.Voice.AudioFile),
		voice.Options{
			LocalThreshold:  cfg.Voice.LocalThreshold,
			RemoteThreshold: cfg.Voice.RemoteThreshold,
			SamplePeriod:    cfg.Voice.SamplePeriod,
		},
	)
	synchronizer := chat.NewSynchronizer(
		relays.Channel(protocol.NamespaceChat),
		api.NewClient(cfg.API.URL, cfg.API.Timeout),
		chat.Options{TypingWindow: cfg.Chat.TypingWindow, RequestTimeout: cfg.Chat.RequestTimeout},
	)

	ctl := &router.Controller{Voice: coordinator, Chat: synchronizer, User: *user}
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(ctx, cfg, ctl),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("user", user.Username).Msg("Murmur client started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		autoJoin(gctx, cfg.AutoJoin, *user, coordinator, synchronizer)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("client error")
	}

	coordinator.Leave()
	synchronizer.Leave()
	log.Info().Msg("Client exited gracefully")
}

// autoJoin enters the configured channels; the relay hooks replay the joins
// once the connections come up.
func autoJoin(ctx context.Context, cfg config.AutoJoinConfig, user domain.User, v *voice.Coordinator, c *chat.Synchronizer) {
	if cfg.Voice != "" {
		if err := v.Join(ctx, domain.ChannelID(cfg.Voice), user); err != nil {
			log.Error().Err(err).Str("channel", cfg.Voice).Msg("auto join voice")
		}
	}
	if cfg.Chat != "" {
		if err := c.Join(ctx, domain.ChannelID(cfg.Chat), user); err != nil {
			log.Error().Err(err).Str("channel", cfg.Chat).Msg("auto join chat")
			return
		}
		if _, err := c.LoadHistory(ctx); err != nil {
			log.Warn().Err(err).Str("channel", cfg.Chat).Msg("history unavailable")
		}
	}
}
