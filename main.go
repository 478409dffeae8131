package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	enginex "github.com/smate-ai/smate-agent/agent/engine"
	llmx "github.com/smate-ai/smate-agent/agent/llm"
	promptx "github.com/smate-ai/smate-agent/agent/prompt"
	storex "github.com/smate-ai/smate-agent/agent/store"
	toolx "github.com/smate-ai/smate-agent/agent/tool"
	configx "github.com/smate-ai/smate-agent/pkg/config"
	_ "github.com/smate-ai/smate-agent/pkg/logger/autoload"
	webhookx "github.com/smate-ai/smate-agent/pkg/webhook"
	whatsappx "github.com/smate-ai/smate-agent/pkg/whatsapp"
)

func main() {
	storeCfg := configx.MustNew[storex.Config]("DATABASE")
	db, err := storex.NewDB(*storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()

	stores := storex.New(db)
	commercial := storex.NewCommercial(db)

	ctx := context.Background()
	if err := stores.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init conversation schema")
	}
	if err := commercial.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("init commercial schema")
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	chat, err := llmx.New(*llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init chat service")
	}

	registry := toolx.NewBusinessRegistry(commercial)
	prompts := promptx.LoadPromptSet()

	engineCfg := configx.MustNew[enginex.Config]("AGENT")
	agent, err := enginex.New(stores, stores, stores, chat, registry, prompts, *engineCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init agent engine")
	}

	waCfg := configx.MustNew[whatsappx.Config]("WHATSAPP")
	wa := whatsappx.MustNew(*waCfg)

	webhookCfg := configx.MustNew[webhookx.Config]("WEBHOOK")
	server := webhookx.NewServer(webhookx.NewHandler(*webhookCfg, agent, wa))

	go func() {
		log.Info().Str("addr", webhookCfg.ListenAddr).Msg("webhook listening")
		if err := server.Start(webhookCfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("webhook server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("webhook shutdown")
	}
	log.Info().Msg("stopped")
}
