package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront-core/internal/address"
	"storefront-core/internal/cart"
	"storefront-core/internal/config"
	"storefront-core/internal/httpx"
	"storefront-core/internal/identity"
	kafkax "storefront-core/internal/kafka"
	"storefront-core/internal/orders"
	"storefront-core/internal/payment"
	"storefront-core/internal/postgres"
	"storefront-core/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024)
	pStatus.Start(ctx)

	resolver := identity.NewResolver(cfg.SessionSecret, cfg.UserSessionTTL, cfg.GuestSessionTTL)

	router := httpx.NewRouter()
	ch := &httpx.CartHandler{
		Store:    &cart.RedisStore{Redis: rdb, Log: log},
		Resolver: resolver,
	}
	ch.Register(router)
	ah := &httpx.AddressHandler{
		Store:    &address.Repo{DB: db, Log: log},
		Resolver: resolver,
	}
	ah.Register(router)
	oh := &httpx.OrdersHandler{
		Store:    &orders.Repo{DB: db, Log: log},
		Cart:     ch.Store,
		Resolver: resolver,
		Builder: payment.NewBuilder(payment.Config{
			MerchantCode: cfg.MerchantCode,
			SecretKey:    cfg.MerchantSecret,
			ReturnURL:    cfg.ReturnURL,
		}),
		ProducerCreated: pCreated,
		ProducerStatus:  pStatus,
		Redis:           rdb,
		Service:         cfg.ServiceName,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pCreated.Close()
	pStatus.Close()
	cancel()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
}
