package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/orlandnut/voicednut/internal/cfg"
	"github.com/orlandnut/voicednut/internal/initdata"
	"github.com/orlandnut/voicednut/internal/logx"
	"github.com/orlandnut/voicednut/internal/miniapp"
	"github.com/orlandnut/voicednut/internal/tg"
	"github.com/orlandnut/voicednut/internal/web"
)

func main() {
	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := logx.Setup(config.LogLevel, config.LogPretty)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	verifier := initdata.NewVerifier(config.BotToken)
	registry := miniapp.DefaultRegistry()
	dispatcher := miniapp.NewDispatcher(verifier, registry, logger)
	logger.Info().Strs("actions", registry.Names()).Msg("voicednut bot starting")

	wsrv := web.NewServer(verifier, config.WebAddr, logger)
	go func() {
		if err := wsrv.Serve(); err != nil {
			logger.Error().Err(err).Msg("web server stopped")
			cancel()
		}
	}()

	bot := tg.NewBot(tg.Options{
		Token:       config.BotToken,
		MiniAppURL:  config.MiniAppURL,
		PollTimeout: config.PollTimeout,
		MaxInFlight: config.MaxInFlight,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	if err := bot.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("telegram bot stopped")
	}

	logger.Info().Msg("shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := wsrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("web shutdown")
	}
}
