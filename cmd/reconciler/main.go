package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avyukt/invest-gateway/internal/config"
	"github.com/avyukt/invest-gateway/internal/jobs"
	"github.com/avyukt/invest-gateway/internal/ledger"
	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/orchestrator"
	"github.com/avyukt/invest-gateway/internal/outbox"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/queue"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/internal/scheduler"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/avyukt/invest-gateway/pkg/prom"
	"github.com/avyukt/invest-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

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

	q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().EventStreamName,
		ConsumerGroup:     config.Get().EventStreamConsumerGroup,
		ConsumerName:      config.Get().EventStreamConsumerName,
		MaxRetries:        config.Get().EventStreamMaxRetries,
		VisibilityTimeout: config.Get().EventStreamVisibility,
		PollInterval:      config.Get().EventStreamPollInterval,
		BatchSize:         config.Get().EventStreamBatchSize,
		MaxLen:            config.Get().EventStreamMaxLen,
		EnableDLQ:         config.Get().EventStreamEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating event stream", "error", err)
		return
	}

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

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	folioRepo := repository.NewFolioRepository(db)
	jobHistoryRepo := repository.NewJobHistoryRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	appender := outbox.NewAppender(outboxRepo)
	dispatcher := outbox.NewDispatcher(outboxRepo, q, int(config.Get().EventStreamBatchSize))

	folios := ledger.NewFolioRegistry(folioRepo)
	writer := ledger.NewWriter(db, transactionRepo, folios, appender)

	sched := scheduler.New(scheduler.Config{
		Workers: config.Get().SchedulerWorkerCount,
		LockTTL: config.Get().SchedulerLockTTL,
	}, scheduler.NewRedisLocker(redisAdap), scheduler.NewHistoryRecorder(jobHistoryRepo))
	sched.Start()

	fulfillment := jobs.NewFulfillmentPoller(providerClient, orderRepo, writer, sched, config.Get().OrderPollInterval)
	paymentPoller := jobs.NewPaymentPoller(paymentRepo, providerClient, appender, sched, config.Get().PaymentPollInterval, config.Get().PaymentPollTimeout)
	mandatePoller := jobs.NewMandatePoller(paymentRepo, providerClient, appender, sched, config.Get().MandatePollInterval, config.Get().MandatePollTimeout)
	goalSync := jobs.NewGoalSync(goalRepo, transactionRepo, sched, config.Get().GoalSyncDebounce)

	// Scheduled jobs are ephemeral; re-register pollers for every payment
	// axis the provider has not resolved yet.
	unresolved, err := paymentRepo.ListUnresolved(context.Background())
	if err != nil {
		logger.Error("failed to list unresolved payments", "error", err)
		return
	}
	for _, p := range unresolved {
		if p.BuyStatus == model.PaymentStatusSubmitted {
			paymentPoller.Schedule(p.ID)
		}
		if p.SipStatus == model.PaymentStatusSubmitted && p.MandateID != nil {
			mandatePoller.Schedule(*p.MandateID, p.ID)
		}
	}
	logger.Info("resumed pollers for unresolved payments", "count", len(unresolved))

	// Same for submitted orders the provider has not settled: their
	// fulfillment polls vanished with the old process.
	awaiting, err := orderRepo.ListItemsAwaitingFulfillment(context.Background())
	if err != nil {
		logger.Error("failed to list items awaiting fulfillment", "error", err)
		return
	}
	for _, item := range awaiting {
		fulfillment.Schedule(item.Ref, item.OrderID)
	}
	logger.Info("resumed fulfillment polls for unsettled order items", "count", len(awaiting))

	basePlacer := orchestrator.NewProviderOrderPlacer(orderRepo, providerClient, fulfillment)
	gatedPlacer := orchestrator.NewKycGatedPlacer(providerClient, sched, config.Get().KycRefreshInterval, time.Second, basePlacer)

	// A payment can reach ACTIVE while its SIP orders sit in CREATED:
	// placements parked behind KYC only live in process memory. Drive
	// them through the placer again; already-placed orders are skipped.
	unplaced, err := paymentRepo.ListActiveSipWithUnplacedOrders(context.Background())
	if err != nil {
		logger.Error("failed to list payments with unplaced sip orders", "error", err)
		return
	}
	for _, p := range unplaced {
		if err := gatedPlacer.PlaceSipOrders(context.Background(), p); err != nil {
			logger.Error("failed to resume sip placement", "payment_id", p.ID, "error", err)
		}
	}
	if len(unplaced) > 0 {
		logger.Info("resumed sip placements", "count", len(unplaced))
	}

	mandateListener := orchestrator.NewMandateListener(paymentRepo, providerClient, gatedPlacer)
	paymentListener := orchestrator.NewPaymentListener(paymentRepo, orderRepo, goalRepo, providerClient, fulfillment, appender)
	notifications := orchestrator.NewNotificationListener(orchestrator.LogNotifier{})

	orch := orchestrator.New(q, mandateListener, paymentListener, goalSync, notifications)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(config.Get().OutboxDispatchEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := dispatcher.DispatchPending(ctx); err != nil {
					logger.Warn("outbox dispatch sweep failed", "error", err)
				}
			}
		}
	}()

	go func() {
		if err := orch.Start(); err != nil {
			logger.Error("failed to start orchestrator", "error", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
		cancel()
		if err := q.Stop(5 * time.Second); err != nil {
			logger.Warn("event stream did not stop cleanly", "error", err)
		}
		sched.Stop()
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
