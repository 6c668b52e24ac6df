package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mim1012/dorami-sub000/internal/config"
	"github.com/mim1012/dorami-sub000/internal/httpx"
	"github.com/mim1012/dorami-sub000/internal/inventory"
	kafkax "github.com/mim1012/dorami-sub000/internal/kafka"
	"github.com/mim1012/dorami-sub000/internal/order"
	"github.com/mim1012/dorami-sub000/internal/points"
	"github.com/mim1012/dorami-sub000/internal/postgres"
	"github.com/mim1012/dorami-sub000/internal/redisx"
	"github.com/mim1012/dorami-sub000/internal/shop"
	"github.com/mim1012/dorami-sub000/internal/waitlist"
	"github.com/mim1012/dorami-sub000/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	created := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderCreated, 1024)
	paid := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderPaid, 1024)
	cancelled := kafkax.NewProducer(cfg.KafkaBrokers, shop.TopicOrderCancelled, 1024)
	created.Start(ctx)
	paid.Start(ctx)
	cancelled.Start(ctx)

	// stores & services
	repo := &order.Repo{DB: db}
	inv := &inventory.Repo{DB: db, TxTimeout: cfg.TxTimeout}
	ledger := &points.Ledger{DB: db, Cfg: cfg.Points, TxTimeout: cfg.TxTimeout}
	svc := &order.Service{
		DB:        db,
		Repo:      repo,
		Inventory: inv,
		Points:    ledger,
		Seq:       &order.Sequence{Redis: rdb},
		Redis:     rdb,
		Producers: order.Producers{
			Created:   created,
			Paid:      paid,
			Cancelled: cancelled,
		},
		ServiceName:     cfg.ServiceName,
		TxTimeout:       cfg.TxTimeout,
		ExpiryWindow:    cfg.OrderExpiryWindow,
		EarnRatePercent: cfg.Points.EarnRatePercent,
	}
	queue := &waitlist.Queue{
		Redis:  rdb,
		Store:  &waitlist.PgStore{DB: db},
		Window: cfg.PromotionWindow,
	}

	// handlers
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Orders: svc}).Register(router)
	(&httpx.CartHandler{Repo: repo, CartItemTTL: cfg.CartItemTTL}).Register(router)
	(&httpx.StockHandler{Inv: inv}).Register(router)
	(&httpx.PointsHandler{Ledger: ledger}).Register(router)
	(&httpx.WaitlistHandler{Queue: queue}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// close inbox -> flush & close writer, then stop loops and drain
	created.Close()
	paid.Close()
	cancelled.Close()
	cancel()
	created.WaitClosed()
	paid.WaitClosed()
	cancelled.WaitClosed()
}
