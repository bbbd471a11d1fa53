// Command analytics-engine runs the sales analytics and inventory
// replenishment service: it consumes order/payment events, recomputes
// rollup metrics, trains per-scope demand forecasts, and serves the thin
// operator surface described in the package docs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/aggregator"
	"github.com/DimaJoyti/analytics-engine/internal/cache"
	"github.com/DimaJoyti/analytics-engine/internal/clock"
	"github.com/DimaJoyti/analytics-engine/internal/config"
	"github.com/DimaJoyti/analytics-engine/internal/events"
	"github.com/DimaJoyti/analytics-engine/internal/forecast"
	"github.com/DimaJoyti/analytics-engine/internal/logging"
	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/quality"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
	"github.com/DimaJoyti/analytics-engine/internal/repository/postgres"
	"github.com/DimaJoyti/analytics-engine/internal/restock"
	"github.com/DimaJoyti/analytics-engine/internal/scheduler"
	transporthttp "github.com/DimaJoyti/analytics-engine/internal/transport/http"
	"github.com/DimaJoyti/analytics-engine/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("analytics engine exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := postgres.NewDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisCache := cache.New(cache.Config{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		KeyPrefix:   cfg.Redis.KeyPrefix,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
	})

	upstreamClient := upstream.New(map[string]upstream.ServiceConfig{
		"inventory": {BaseURL: cfg.Upstream.InventoryURL, DefaultTimeout: cfg.Upstream.RequestTimeout},
		"sales":     {BaseURL: cfg.Upstream.SalesURL, DefaultTimeout: cfg.Upstream.RequestTimeout},
		"callbacks": {BaseURL: cfg.Upstream.AnalyticsCallbacksURL, DefaultTimeout: cfg.Upstream.RequestTimeout},
	}, cfg.Upstream.MaxRetries, logger)

	clk := clock.NewReal()

	dailySalesRepo := postgres.NewDailySalesRepository(db)
	productDemandRepo := postgres.NewProductDemandRepository(db)
	turnoverRepo := postgres.NewInventoryTurnoverRepository(db)
	productDailyRepo := postgres.NewProductDailySalesRepository(db)
	recommendationRepo := postgres.NewRecommendationRepository(db)
	categoryRepo := postgres.NewCategoryPerformanceRepository(db)
	accuracyRepo := postgres.NewForecastAccuracyRepository(db)
	eventPositionRepo := postgres.NewEventPositionRepository(db)
	taskRunRepo := postgres.NewTaskRunRepository(db)

	agg := aggregator.New(upstreamClient, dailySalesRepo, productDemandRepo, turnoverRepo, productDailyRepo, recommendationRepo, clk, logger, cfg.Analytics.ConsumerBatchSize)

	source := forecast.NewRepositorySource(dailySalesRepo, productDailyRepo, upstreamClient)
	validator := quality.New()
	engine := forecast.New(source, validator, redisCache, accuracyRepo, categoryRepo, clk, logger, forecast.Config{
		ModelCacheTTL:     cfg.Analytics.ModelCacheTTL,
		ForecastResultTTL: cfg.Analytics.ForecastResultTTL,
	})
	analyzer := restock.New(engine, clk, logger)

	handlers := events.NewHandlers(dailySalesRepo, productDailyRepo, clk)
	consumer, err := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, "analytics-engine", eventPositionRepo, clk, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()
	consumer.Register("order.created", handlers.OrderCreated)
	consumer.Register("order.updated", handlers.OrderUpdated)
	consumer.Register("order.cancelled", handlers.OrderCancelled)
	consumer.Register("payment.created", handlers.PaymentCreated)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, stream := range cfg.Kafka.Streams {
		stream := stream
		go func() {
			if err := consumer.Run(ctx, stream); err != nil && ctx.Err() == nil {
				logger.Error("event consumer stopped", zap.String("stream", stream), zap.Error(err))
			}
		}()
	}

	sched := buildScheduler(cfg, agg, engine, upstreamClient, recommendationRepo, taskRunRepo, clk, logger)
	go sched.Run(ctx)

	operationalHandlers := transporthttp.NewHandlers(engine, analyzer, taskRunRepo, logger, transporthttp.Config{
		DefaultPeriods:      cfg.Analytics.TopNDefault,
		DefaultLeadTimeDays: cfg.Analytics.LeadTimeDaysDefault,
		DefaultServiceLevel: cfg.Analytics.ServiceLevelDefault,
		BulkMaxProducts:     cfg.Analytics.BulkMaxProducts,
		BulkWorkerPoolSize:  cfg.Analytics.BulkWorkerPool,
	})

	mux := http.NewServeMux()
	operationalHandlers.RegisterRoutes(mux)
	server := &http.Server{
		Addr:         portAddr(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	healthMux := http.NewServeMux()
	operationalHandlers.RegisterOperationalRoutes(healthMux, func() bool {
		return db.Health(ctx) == nil
	})
	healthServer := &http.Server{
		Addr:    portAddr(cfg.Server.HealthPort),
		Handler: healthMux,
	}

	go func() {
		logger.Info("analytics engine API listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server stopped", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("analytics engine health server listening", zap.Int("port", cfg.Server.HealthPort))
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)
	healthServer.Shutdown(shutdownCtx)

	return nil
}

func buildScheduler(
	cfg *config.Config,
	agg *aggregator.Aggregator,
	engine *forecast.Engine,
	upstreamClient *upstream.Client,
	recommendations repository.RecommendationRepository,
	taskRuns repository.TaskRunRepository,
	clk clock.Clock,
	logger *zap.Logger,
) *scheduler.Scheduler {
	sched := scheduler.New(taskRuns, clk, logger)

	sched.Register(scheduler.Task{
		Name:     "calculate_daily_metrics",
		Interval: time.Hour,
		Timeout:  5 * time.Minute,
		Fn: func(ctx context.Context) (string, error) {
			result, err := agg.ComputeDaily(ctx, clk.Today())
			if err != nil {
				return "", err
			}
			return string(result.Status), nil
		},
	})

	sched.Register(scheduler.Task{
		Name:     "calculate_product_demand",
		Interval: 2 * time.Hour,
		Timeout:  10 * time.Minute,
		Fn: func(ctx context.Context) (string, error) {
			_, err := agg.ComputeDemand(ctx, cfg.Analytics.PeriodDaysDefault)
			return "", err
		},
	})

	sched.Register(scheduler.Task{
		Name:     "calculate_inventory_turnover",
		Interval: 24 * time.Hour,
		Timeout:  10 * time.Minute,
		Fn: func(ctx context.Context) (string, error) {
			_, err := agg.ComputeTurnover(ctx, cfg.Analytics.PeriodDaysDefault)
			return "", err
		},
	})

	sched.Register(scheduler.Task{
		Name:     "generate_restock_recommendations",
		Interval: 24 * time.Hour,
		Timeout:  10 * time.Minute,
		Fn: func(ctx context.Context) (string, error) {
			_, err := agg.GenerateRecommendations(ctx)
			return "", err
		},
	})

	sched.Register(scheduler.Task{
		Name:     "save_daily_forecasts",
		Interval: 24 * time.Hour,
		Timeout:  15 * time.Minute,
		Fn: func(ctx context.Context) (string, error) {
			_, err := engine.Forecast(ctx, forecast.Scope("total_sales"), cfg.Analytics.TopNDefault, false)
			return "", err
		},
	})

	sched.Register(scheduler.Task{
		Name:     "update_forecast_accuracy",
		Interval: 24 * time.Hour,
		Timeout:  10 * time.Minute,
		Fn: func(ctx context.Context) (string, error) {
			_, err := engine.Accuracy(ctx, models.ForecastSales, "total_sales")
			return "", err
		},
	})

	sched.Register(scheduler.Task{
		Name:     "cleanup_old_data",
		Interval: 7 * 24 * time.Hour,
		Timeout:  10 * time.Minute,
		Fn: func(ctx context.Context) (string, error) {
			cutoff := clk.Today().AddDate(0, 0, -cfg.Analytics.RetentionDays)
			_, err := recommendations.DeleteNonOrderedOlderThan(ctx, cutoff)
			return "", err
		},
	})

	sched.Register(scheduler.Task{
		Name:     "check_service_health",
		Interval: 5 * time.Minute,
		Timeout:  30 * time.Second,
		Fn: func(ctx context.Context) (string, error) {
			down := make([]string, 0)
			for _, svc := range []string{"inventory", "sales", "callbacks"} {
				if !upstreamClient.HealthCheck(ctx, svc, cfg.Upstream.HealthProbeTimeout) {
					down = append(down, svc)
				}
			}
			if len(down) > 0 {
				return "", fmt.Errorf("unhealthy upstreams: %v", down)
			}
			return "all upstreams healthy", nil
		},
	})

	return sched
}

func portAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}
