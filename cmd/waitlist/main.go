package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mim1012/dorami-sub000/internal/config"
	kafkax "github.com/mim1012/dorami-sub000/internal/kafka"
	"github.com/mim1012/dorami-sub000/internal/postgres"
	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
	"github.com/mim1012/dorami-sub000/internal/waitlist"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

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

	// Producer: promotion notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicReservationPromoted, 1024)
	prod.Start(ctx)

	queue := &waitlist.Queue{
		Redis:  rdb,
		Store:  &waitlist.PgStore{DB: db},
		Window: cfg.PromotionWindow,
	}
	handler := &waitlist.Consumer{
		Queue:       queue,
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-waitlist",
	}

	// Consumer
	group := getenv("WAITLIST_GROUP", "waitlist-svc")
	workers := mustAtoi(os.Getenv("WAITLIST_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, shop.TopicOrderCancelled, workers)

	go func() {
		log.Printf("waitlist consumer started: group=%s topic=%s workers=%d", group, shop.TopicOrderCancelled, workers)
		if err := cons.Start(ctx, handler.HandleOrderCancelled); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
