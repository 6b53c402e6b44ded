package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	fieldtalkroot "github.com/arlo-research/fieldtalk"
	"github.com/arlo-research/fieldtalk/internal/config"
	"github.com/arlo-research/fieldtalk/internal/domain"
	"github.com/arlo-research/fieldtalk/internal/generator"
	"github.com/arlo-research/fieldtalk/internal/handler"
	"github.com/arlo-research/fieldtalk/internal/interview"
	"github.com/arlo-research/fieldtalk/internal/middleware"
	"github.com/arlo-research/fieldtalk/internal/repository"
	"github.com/arlo-research/fieldtalk/internal/service"
	"github.com/arlo-research/fieldtalk/internal/telegram"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(fieldtalkroot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	queries := repository.New(pool)

	// Initialize services
	userService := service.NewUserService(pool, queries)
	conversationService := service.NewConversationService(pool, queries)
	transcriptService := service.NewTranscriptService(pool, queries)
	usageService := service.NewUsageService(pool, queries, cfg.PromptPricePerM, cfg.CompletionPricePerM)

	// Resolve the generator backend once at startup
	gen, err := generator.New(cfg)
	if err != nil {
		slog.Error("failed to create generator", "error", err)
		os.Exit(1)
	}
	slog.Info("generator backend selected", "backend", cfg.GeneratorBackend)

	// Load the interview script once; it travels into every generation call
	script, err := interview.LoadScript(cfg.ScriptPath)
	if err != nil {
		slog.Error("failed to load interview script", "error", err)
		os.Exit(1)
	}

	engine := interview.NewEngine(conversationService, transcriptService, usageService, gen, interview.Options{
		Script:       script,
		Sentinel:     config.TerminalSentinel,
		HistoryLimit: cfg.HistoryLimit,
		Timeout:      cfg.GeneratorTimeout,
	})

	// Handler and ops logger pointers for use in closures that are wired
	// before the bot they need is constructed.
	var (
		h      *handler.Handler
		opsLog *telegram.OpsLogger
	)

	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.Access(cfg),
			middleware.UserLoader(userService, func(u *domain.User) {
				if opsLog != nil {
					opsLog.LogNewUser(u)
				}
			}),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleText(ctx, b, update)
		}),
	}
	if cfg.DropPendingUpdates {
		// Start from the newest update instead of replaying the backlog.
		opts = append(opts, bot.WithInitialOffset(-1))
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	opsLog = telegram.NewOpsLogger(b, cfg)

	h = handler.New(handler.Deps{
		Bot:    b,
		Cfg:    cfg,
		Engine: engine,
		OpsLog: opsLog,
	})
	h.Register()

	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	slog.Info("bot stopped gracefully")
}
