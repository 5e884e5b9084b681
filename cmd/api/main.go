package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avyukt/invest-gateway/internal/config"
	"github.com/avyukt/invest-gateway/internal/handlers"
	"github.com/avyukt/invest-gateway/internal/jobs"
	"github.com/avyukt/invest-gateway/internal/ledger"
	"github.com/avyukt/invest-gateway/internal/outbox"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/internal/scheduler"
	xhttp "github.com/avyukt/invest-gateway/pkg/http"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/avyukt/invest-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type dbHealth struct {
	db *pg.DB
}

func (h dbHealth) Get() error {
	sqlDB, err := h.db.Read(context.Background()).DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.ConnectReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter(config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	orderRepo := repository.NewOrderRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	folioRepo := repository.NewFolioRepository(db)
	jobHistoryRepo := repository.NewJobHistoryRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	providerClient, err := provider.NewClient(&provider.Config{
		OrderBaseURL:   config.Get().OrderProviderUrl,
		MandateBaseURL: config.Get().MandateProviderUrl,
		PaymentBaseURL: config.Get().PaymentProviderUrl,
		KycBaseURL:     config.Get().KycProviderUrl,
		Timeout:        config.Get().ProviderTimeout,
		MaxRetries:     config.Get().ProviderMaxRetries,
	})
	if err != nil {
		logger.Error("failed to create provider client", "error", err)
		return
	}

	appender := outbox.NewAppender(outboxRepo)
	folios := ledger.NewFolioRegistry(folioRepo)
	writer := ledger.NewWriter(db, transactionRepo, folios, appender)

	// Manual poll triggers run on a local scheduler; the redis lock keeps
	// them single-flight with the reconciler's own polls.
	sched := scheduler.New(scheduler.Config{
		Workers: 4,
		LockTTL: config.Get().SchedulerLockTTL,
	}, scheduler.NewRedisLocker(redisAdap), scheduler.NewHistoryRecorder(jobHistoryRepo))
	sched.Start()

	fulfillment := jobs.NewFulfillmentPoller(providerClient, orderRepo, writer, sched, config.Get().OrderPollInterval)

	// v1 handlers
	transactionHandler := handlers.NewTransactionHandler(transactionRepo)
	jobHandler := handlers.NewJobHandler(jobHistoryRepo)
	orderHandler := handlers.NewOrderHandler(sched, fulfillment)
	healthHandler := handlers.NewHealthHandler(dbHealth{db: db})

	g := s.Router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterJobRoutes(g, jobHandler)
	handlers.RegisterOrderRoutes(g, orderHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		sched.Stop()
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
