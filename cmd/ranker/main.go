package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/xaenox/interview-ranker/internal/bank"
	"github.com/xaenox/interview-ranker/internal/cache"
	"github.com/xaenox/interview-ranker/internal/classifier"
	"github.com/xaenox/interview-ranker/internal/ledger"
	"github.com/xaenox/interview-ranker/internal/metrics"
	"github.com/xaenox/interview-ranker/internal/notify"
	"github.com/xaenox/interview-ranker/internal/processor"
	"github.com/xaenox/interview-ranker/internal/storage"
	"github.com/xaenox/interview-ranker/internal/transport/ws"
	"github.com/xaenox/interview-ranker/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	configPath := "config.yaml"
	if p := os.Getenv("RANKER_CONFIG"); p != "" {
		configPath = p
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err), zap.String("path", configPath))
	}
	if cfg.Log.Development {
		logger, _ = zap.NewDevelopment()
	}

	seed, err := bank.LoadFile(cfg.Bank.Path)
	if err != nil {
		logger.Fatal("Failed to load question bank", zap.Error(err), zap.String("path", cfg.Bank.Path))
	}
	logger.Info("Loaded question bank", zap.Int("questions", len(seed)))

	// Initialize storage
	var journal storage.Journal
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		journal = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		journal, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer journal.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	observers := []processor.Observer{storage.NewObserver(journal, logger)}
	var leaderboard *cache.Leaderboard

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal("Failed to ping Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		leaderboard = cache.NewLeaderboard(rdb, cfg.Redis.TTL, logger)
		observers = append(observers, leaderboard)
	}

	if cfg.Telegram.Enabled() {
		n, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
		observers = append(observers, n)
	}

	clf, rater := newJudges(cfg, logger)

	l := ledger.New(seed, ledger.WithRetirementThreshold(cfg.Scoring.RetirementThreshold))
	proc := processor.New(clf, rater, l, seed, logger,
		processor.WithDebounce(cfg.Processor.Debounce),
		processor.WithTimeout(cfg.OpenAI.Timeout),
		processor.WithObserver(observers...),
		processor.WithMetrics(m),
	)

	handler := ws.NewHandler(proc, logger)
	if leaderboard != nil {
		handler.WithLeaderboard(leaderboard)
	}
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: ws.NewRouter(handler, reg),
	}

	go func() {
		logger.Info("Server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("classifier_mode", cfg.Classifier.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("ListenAndServe failed", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := proc.Handle(shutdownCtx, processor.CallEnd{Reason: "shutdown"}); err != nil {
		logger.Warn("Failed to end active call", zap.Error(err))
	}
	if err := proc.Close(); err != nil {
		logger.Error("Failed to drain processor", zap.Error(err))
	}
	logger.Info("Server exited")
}

// newJudges picks the classifier and rater for the configured mode.
func newJudges(cfg *config.Config, logger *zap.Logger) (classifier.StatusClassifier, classifier.AnswerRater) {
	if cfg.Classifier.Mode == config.ModeHeuristic {
		logger.Info("Using heuristic classifier")
		return classifier.NewSimpleClassifier(cfg.Classifier.MinAnswerWords), classifier.NewSimpleRater()
	}

	client := classifier.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	clf := classifier.NewGPTClassifier(client, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature, logger)
	rater := classifier.NewGPTRater(client, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature, logger)
	return clf, rater
}
