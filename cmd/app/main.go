package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/pickupslots/config"
	"github.com/Domenick1991/pickupslots/internal/bootstrap"
	"github.com/Domenick1991/pickupslots/internal/cache"
	"github.com/Domenick1991/pickupslots/internal/calendar"
	"github.com/Domenick1991/pickupslots/internal/kafka"
	"github.com/Domenick1991/pickupslots/internal/logger"
	"github.com/Domenick1991/pickupslots/internal/metrics"
	"github.com/Domenick1991/pickupslots/internal/repository"
	"github.com/Domenick1991/pickupslots/internal/service/events"
	"github.com/Domenick1991/pickupslots/internal/service/reclaimer"
	"github.com/Domenick1991/pickupslots/internal/service/reservation"
	"github.com/Domenick1991/pickupslots/internal/service/slots"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.New(cfg.App.Environment)
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.App.Location()
	if err != nil {
		lg.Fatal("load timezone", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}
	now := func() time.Time { return time.Now().In(loc) }

	pool, err := connectPostgres(ctx, cfg.Database, lg)
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		migrator, err := repository.NewMigrator(pool, lg)
		if err != nil {
			lg.Fatal("init migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			lg.Fatal("apply migrations", zap.Error(err))
		}
		_ = migrator.Close()
	}

	metrics.Register()

	shopCalendar, err := calendar.New(cfg.Calendar)
	if err != nil {
		lg.Fatal("invalid calendar", zap.Error(err))
	}

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.AvailabilityCacheTTL())
	defer redisCache.Close()

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, lg)
		defer producer.Close()
		publisher = events.NewPublisher(producer, cfg.Kafka.SlotEventsTopic, lg,
			events.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	tx := repository.NewTxRunner(pool)
	slotRepo := repository.NewSlotRepository(pool)
	holdRepo := repository.NewHoldRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	productRepo := repository.NewProductRepository(pool)

	engine := reservation.NewEngine(tx, slotRepo, holdRepo, bookingRepo,
		reservation.WithHoldTTL(cfg.Booking.HoldTTL()),
		reservation.WithPaymentTTL(cfg.Booking.PaymentTTL()),
		reservation.WithSlotLength(cfg.Booking.SlotLength()),
		reservation.WithMaxRangeDays(cfg.Booking.MaxAvailabilityDays),
		reservation.WithCategoryRules(cfg.Categories),
		reservation.WithProducts(productRepo),
		reservation.WithCalendar(shopCalendar),
		reservation.WithCache(redisCache),
		reservation.WithPublisher(publisher),
		reservation.WithLogger(lg),
		reservation.WithClock(now),
	)

	slotService := slots.NewService(tx, slotRepo, bookingRepo,
		slots.WithCategoryRules(cfg.Categories),
		slots.WithSlotLength(cfg.Booking.SlotLength()),
		slots.WithWarnThreshold(cfg.Booking.BulkWarnThreshold),
		slots.WithCache(redisCache),
		slots.WithLogger(lg),
	)

	orderService := reclaimer.NewService(tx, slotRepo, bookingRepo,
		reclaimer.WithBatchSize(cfg.Worker.BatchSize),
		reclaimer.WithCache(redisCache),
		reclaimer.WithLocker(redisCache),
		reclaimer.WithPublisher(publisher),
		reclaimer.WithLogger(lg),
		reclaimer.WithClock(now),
	)

	svc := bootstrap.Services{
		Reservations: engine,
		Slots:        slotService,
		Orders:       orderService,
	}
	if err := bootstrap.Run(ctx, cfg, svc, lg); err != nil {
		lg.Fatal("server error", zap.Error(err))
	}
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig, lg *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.MaxConns

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lg.Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, err
}
