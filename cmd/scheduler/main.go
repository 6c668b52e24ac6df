package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mim1012/dorami-sub000/internal/config"
	"github.com/mim1012/dorami-sub000/internal/expiry"
	"github.com/mim1012/dorami-sub000/internal/inventory"
	kafkax "github.com/mim1012/dorami-sub000/internal/kafka"
	"github.com/mim1012/dorami-sub000/internal/order"
	"github.com/mim1012/dorami-sub000/internal/points"
	"github.com/mim1012/dorami-sub000/internal/postgres"
	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: expiry cancellations re-use the order.cancelled topic so the
	// waitlist consumer promotes waiters for the restored stock.
	cancelled := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderCancelled, 1024)
	cancelled.Start(ctx)
	reminder := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicPaymentReminder, 1024)
	reminder.Start(ctx)

	svc := &order.Service{
		DB:        db,
		Repo:      &order.Repo{DB: db},
		Inventory: &inventory.Repo{DB: db, TxTimeout: cfg.TxTimeout},
		Points:    &points.Ledger{DB: db, Cfg: cfg.Points, TxTimeout: cfg.TxTimeout},
		Seq:       &order.Sequence{Redis: rdb},
		Redis:     rdb,
		Producers: order.Producers{Cancelled: cancelled},

		ServiceName:     cfg.ServiceName + "-scheduler",
		TxTimeout:       cfg.TxTimeout,
		ExpiryWindow:    cfg.OrderExpiryWindow,
		EarnRatePercent: cfg.Points.EarnRatePercent,
	}

	sched := &expiry.Scheduler{
		Orders:   svc,
		Redis:    rdb,
		Reminder: reminder,

		ExpiryWindow:      cfg.OrderExpiryWindow,
		ExpiryInterval:    cfg.ExpiryInterval,
		ReminderThreshold: cfg.ReminderThreshold,
		ReminderInterval:  cfg.ReminderInterval,

		ServiceName: cfg.ServiceName + "-scheduler",
	}

	go func() {
		log.Printf("scheduler started: expiry every %s, reminders every %s", cfg.ExpiryInterval, cfg.ReminderInterval)
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("scheduler exit: %v", err)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down scheduler...")
	cancel()
	cancelled.Close()
	reminder.Close()
	cancelled.WaitClosed()
	reminder.WaitClosed()
}
