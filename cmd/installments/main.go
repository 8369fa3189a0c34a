package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bazario/emi-checkout/internal/config"
	"github.com/bazario/emi-checkout/internal/installments"
	kafkax "github.com/bazario/emi-checkout/internal/kafka"
	"github.com/bazario/emi-checkout/internal/orders"
	"github.com/bazario/emi-checkout/internal/postgres"
	"github.com/bazario/emi-checkout/internal/redisx"
	"github.com/joho/godotenv"
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

	// Producer for schedule announcements
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicInstallmentsScheduled, 1024)
	prod.Start(ctx)

	// Service
	svc := &installments.Service{
		Repo:        &orders.InstallmentRepo{DB: db},
		Dedup:       &installments.RedisDedup{RDB: rdb},
		Producer:    prod,
		ServiceName: cfg.ServiceName + "-installments",
	}

	// Consumer
	group := getenv("INSTALLMENTS_GROUP", "installments-svc")
	workers := mustAtoi(os.Getenv("INSTALLMENTS_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderFinalized, workers)

	go func() {
		log.Printf("installments consumer started: group=%s topic=%s workers=%d", group, orders.TopicOrderFinalized, workers)
		if err := cons.Start(ctx, svc.HandleOrderFinalized); err != nil {
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
