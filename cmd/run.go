package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	"golang.org/x/sync/errgroup"

	"github.com/gryag-bot/gryag/internal/agent"
	"github.com/gryag-bot/gryag/internal/config"
	"github.com/gryag-bot/gryag/internal/llm"
	"github.com/gryag-bot/gryag/internal/store"
	"github.com/gryag-bot/gryag/internal/summarizer"
	"github.com/gryag-bot/gryag/internal/telegram"
	"github.com/gryag-bot/gryag/internal/tools"
)

func runBot() {
	if err := run(); err != nil {
		slog.Error("bot exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	client := llm.NewClient(llm.Config{
		APIKey:            cfg.LLMAPIKey,
		BaseURL:           cfg.LLMBaseURL,
		Model:             cfg.LLMModel,
		FallbackModel:     cfg.FallbackModel,
		VisionEnabled:     cfg.VisionEnabled,
		VisionAPIKey:      cfg.VisionAPIKey,
		VisionBaseURL:     cfg.VisionBaseURL,
		VisionModel:       cfg.EffectiveVisionModel(),
		MaxRetries:        cfg.MaxRetries,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxResponseTokens: cfg.MaxResponseTokens,
	})

	registry := buildRegistry(cfg, st)

	bot, err := telego.NewBot(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	builder := agent.NewBuilder(st, registry, agent.BuilderConfig{
		PromptFile:      cfg.SystemPromptFile,
		BotName:         cfg.BotName,
		BotUsername:     bot.Username(),
		TriggerKeywords: cfg.TriggerKeywords,
		HistoryLimit:    cfg.HistoryLimit,
		MaxUserFacts:    cfg.MaxUserFacts,
	})
	detector := agent.NewPhraseDetector(agent.DefaultPhraseSets())
	loop := agent.NewLoop(client, registry, detector, 0)

	var limiter *telegram.Limiter
	if cfg.RateLimitEnabled {
		limiter = telegram.NewLimiter(
			cfg.RateLimitPrompts,
			time.Duration(cfg.RateLimitWindowHours)*time.Hour,
			cfg.AdminIDs,
		)
	} else {
		limiter = telegram.NewLimiter(0, 0, nil)
	}

	channel := telegram.New(bot, telegram.Config{
		Token:           cfg.TelegramBotToken,
		TriggerKeywords: cfg.TriggerKeywords,
		TypingIndicator: cfg.TypingIndicator,
	}, telegram.Deps{
		Store:   st,
		Builder: builder,
		Loop:    loop,
		Gate:    agent.NewGate(),
		Limiter: limiter,
	})

	sum := summarizer.New(st, client, summarizer.Config{Model: cfg.SummaryModel})
	scheduler, err := summarizer.NewScheduler(sum, cfg.WeeklySummarySchedule, cfg.MonthlySummarySchedule)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := channel.Start(gctx); err != nil {
			return err
		}
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		channel.Stop()
		return nil
	})

	slog.Info("gryag started", "model", cfg.LLMModel, "tools", registry.Names())
	return g.Wait()
}

func buildRegistry(cfg *config.Config, st *store.Store) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewCalculatorTool())
	registry.Register(tools.NewWeatherTool())
	registry.Register(tools.NewSearchTool())
	if cfg.ImageGenEnabled {
		registry.Register(tools.NewImageTool(tools.ImageConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.EffectiveImageBaseURL(),
			Model:   cfg.ImageGenModel,
		}))
	}
	registry.Register(tools.NewSaveFactTool(st))
	registry.Register(tools.NewGetFactsTool(st))
	registry.Register(tools.NewDeleteFactTool(st))
	registry.Register(tools.NewDeleteAllFactsTool(st))
	return registry
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARNING", "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
