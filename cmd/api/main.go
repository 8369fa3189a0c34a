package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bazario/emi-checkout/internal/checkout"
	"github.com/bazario/emi-checkout/internal/config"
	"github.com/bazario/emi-checkout/internal/gateway"
	"github.com/bazario/emi-checkout/internal/httpx"
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
	if err := orders.RunMigrations(cfg.PostgresDSN); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderFinalized, 1024)
	prod.Start(ctx)

	// Services
	repo := &orders.Repo{DB: db}
	orderSvc := &orders.Service{
		Store:       repo,
		Producer:    prod,
		Redis:       rdb,
		ServiceName: cfg.ServiceName,
	}
	store := &checkout.RedisStore{RDB: rdb}
	checkoutSvc := &checkout.Service{
		Pending:   store,
		Guard:     store,
		Carts:     store,
		Gateway:   gateway.New(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewaySecret),
		Finalizer: orderSvc,
		ReturnURL: cfg.PublicBaseURL + "/checkout/return",
	}

	// Handlers
	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{
		Svc:            checkoutSvc,
		SuccessPageURL: cfg.SuccessPageURL,
		FailurePageURL: cfg.FailurePageURL,
		StorefrontURL:  cfg.StorefrontURL,
	}).Register(router)
	(&httpx.OrdersHandler{Svc: orderSvc, Repo: repo, Redis: rdb}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

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
	prod.Close() // close inbox -> flush & close writer
	cancel()
	prod.WaitClosed()
}
