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

	"github.com/ad/go-strategy-coach/internal/api"
	"github.com/ad/go-strategy-coach/internal/config"
	"github.com/ad/go-strategy-coach/internal/db"
	"github.com/ad/go-strategy-coach/internal/handlers"
	"github.com/ad/go-strategy-coach/internal/logging"
	"github.com/ad/go-strategy-coach/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.RequireBot(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.AdminID == 0 {
		logger.Warn("ADMIN_ID is not set, error reports are disabled")
	}

	sqlDB, err := db.Open(cfg.Dialect, cfg.DSN())
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer sqlDB.Close()

	dbQueue := db.NewDBQueue(sqlDB, cfg.Dialect)
	defer dbQueue.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := db.InitSchema(ctx, dbQueue); err != nil {
		logger.Fatal("failed to initialize schema", zap.Error(err))
	}

	userRepo := db.NewUserRepository(dbQueue)
	profileRepo := db.NewProfileRepository(dbQueue)
	draftRepo := db.NewDraftRepository(dbQueue)
	recommendationRepo := db.NewRecommendationRepository(dbQueue)
	strategyRepo := db.NewStrategyRepository(dbQueue)
	progressRepo := db.NewProgressRepository(dbQueue)

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	b, err := bot.New(cfg.BotToken, bot.WithHTTPClient(15*time.Second, httpClient))
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}

	botInfo, err := connect(ctx, b, logger)
	if err != nil {
		logger.Fatal("failed to get bot info", zap.Error(err))
	}

	errorManager := services.NewErrorManager(b, cfg.AdminID, logger)
	msgManager := services.NewMessageManager(b, errorManager)
	userManager := services.NewUserManager(userRepo)
	profileService := services.NewProfileService(profileRepo, draftRepo)
	viewResolver := services.NewViewResolver(profileService)
	strategyService := services.NewStrategyService(recommendationRepo, strategyRepo, progressRepo, profileRepo, logger)

	handler := handlers.NewBotHandler(
		b,
		errorManager,
		msgManager,
		userManager,
		profileService,
		viewResolver,
		strategyService,
		progressRepo,
		cfg.ReconcileTimeout,
		logger,
	)

	b.RegisterHandlerMatchFunc(func(update *tgmodels.Update) bool {
		return true
	}, handler.HandleUpdate, logMiddleware(logger))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.APIAddr != "" {
		server := api.NewServer(api.NewJWTAuth(cfg.JWTSecret), strategyService, profileService, progressRepo, cfg.ReconcileTimeout, logger)
		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.APIAddr)
		})
	}
	g.Go(func() error {
		logger.Info("bot started",
			zap.String("username", botInfo.Username),
			zap.Int64("admin_id", cfg.AdminID),
			zap.String("db_driver", string(cfg.Dialect)))
		b.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stopped with error", zap.Error(err))
	}
	logger.Info("bot stopped")
}

// connect retries getMe with a short timeout.
func connect(ctx context.Context, b *bot.Bot, logger *zap.Logger) (*tgmodels.User, error) {
	const attempts = 3

	var (
		botInfo *tgmodels.User
		err     error
	)
	for i := 0; i < attempts; i++ {
		logger.Info("connecting to Telegram API", zap.Int("attempt", i+1))
		getMeCtx, getMeCancel := context.WithTimeout(ctx, 10*time.Second)
		botInfo, err = b.GetMe(getMeCtx)
		getMeCancel()
		if err == nil {
			return botInfo, nil
		}
		logger.Warn("getMe failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", attempts, err)
}

func formatUser(u tgmodels.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	return fmt.Sprintf("%s [%d]", name, u.ID)
}

func logMiddleware(logger *zap.Logger) func(next bot.HandlerFunc) bot.HandlerFunc {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
			if update.Message != nil && update.Message.From != nil {
				logger.Debug("message",
					zap.String("from", formatUser(*update.Message.From)),
					zap.String("text", update.Message.Text))
			}
			if update.CallbackQuery != nil {
				logger.Debug("callback",
					zap.String("from", formatUser(update.CallbackQuery.From)),
					zap.String("data", update.CallbackQuery.Data))
			}
			next(ctx, b, update)
		}
	}
}
