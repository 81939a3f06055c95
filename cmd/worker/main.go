package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/pickupslots/config"
	"github.com/Domenick1991/pickupslots/internal/cache"
	"github.com/Domenick1991/pickupslots/internal/email"
	"github.com/Domenick1991/pickupslots/internal/kafka"
	"github.com/Domenick1991/pickupslots/internal/logger"
	"github.com/Domenick1991/pickupslots/internal/metrics"
	"github.com/Domenick1991/pickupslots/internal/repository"
	"github.com/Domenick1991/pickupslots/internal/service/events"
	"github.com/Domenick1991/pickupslots/internal/service/reclaimer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.New(cfg.App.Environment).With(zap.String("component", "worker"))
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := cfg.App.Location()
	if err != nil {
		lg.Fatal("load timezone", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}
	now := func() time.Time { return time.Now().In(loc) }

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		lg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	metrics.Register()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.AvailabilityCacheTTL())
	defer redisCache.Close()

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, lg)
		defer producer.Close()
		publisher = events.NewPublisher(producer, cfg.Kafka.SlotEventsTopic, lg,
			events.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, lg)
		defer consumer.Close()

		sender := email.NewSender(lg)
		go func() {
			if err := consumer.Consume(ctx, sender.Send); err != nil {
				lg.Error("consumer stopped", zap.Error(err))
			}
		}()
	}

	tx := repository.NewTxRunner(pool)
	slotRepo := repository.NewSlotRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	orders := reclaimer.NewService(tx, slotRepo, bookingRepo,
		reclaimer.WithBatchSize(cfg.Worker.BatchSize),
		reclaimer.WithCache(redisCache),
		reclaimer.WithLocker(redisCache),
		reclaimer.WithPublisher(publisher),
		reclaimer.WithLogger(lg),
		reclaimer.WithClock(now),
	)

	// Soft holds are swept lazily by the engine; the worker only reclaims orders.
	sweep := func() {
		if _, err := orders.ReclaimExpiredPendingOrders(ctx); err != nil {
			lg.Error("reclaim expired orders", zap.Error(err))
		}
	}

	expireTicker := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
	defer expireTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	sweep()
	for {
		select {
		case <-expireTicker.C:
			sweep()
		case s := <-sig:
			lg.Info("shutting down", zap.String("signal", s.String()))
			return
		}
	}
}
