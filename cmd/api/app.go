package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"crm-interactions/internal/audit"
	"crm-interactions/internal/calls"
	"crm-interactions/internal/config"
	"crm-interactions/internal/directory"
	"crm-interactions/internal/events"
	"crm-interactions/internal/messages"
	"crm-interactions/internal/reporting"
	"crm-interactions/internal/telephony"
	"crm-interactions/internal/templates"
	"crm-interactions/internal/ticketing"
	"crm-interactions/internal/transport"
	"crm-interactions/migrations"
	"crm-interactions/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const externalTimeout = 10 * time.Second

// app owns the process-wide collaborators. Nil fields are features disabled by config.
type app struct {
	log *slog.Logger

	db  *sql.DB
	rdb *redis.Client

	dispatcher events.Dispatcher
	hub        *events.Hub
	relay      *events.RedisRelay

	amqp      *transport.Connection
	publisher *transport.Publisher
	consumer  *transport.ReceiptConsumer

	audit     *audit.Service
	messages  *messages.Service
	calls     *calls.Service
	templates *templates.Service
	reports   *reporting.Service
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.UsePostgres() {
		db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, err
		}
		a.db = db
		if cfg.DB.ApplySchema {
			stmts, err := migrations.Statements()
			if err != nil {
				return nil, err
			}
			if err := utils.ApplySchema(ctx, db, stmts...); err != nil {
				return nil, err
			}
			log.Info("schema applied", "statements", len(stmts))
		}
	}

	if cfg.UseRedis() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
	}

	a.dispatcher = events.NewInMemoryDispatcher(log)
	a.hub = events.NewHub(log, cfg.App.AllowedOrigins)
	a.dispatcher.Subscribe(a.hub.Handle)
	if a.rdb != nil {
		a.relay = events.NewRedisRelay(a.rdb, "", log)
		a.dispatcher.Subscribe(a.relay.Forward)
	}

	var (
		auditRepo   audit.Repository
		messageRepo messages.Repository
		callRepo    calls.Repository
		templRepo   templates.Repository
		dir         calls.Directory
	)
	if a.db != nil {
		auditRepo = audit.NewPostgresRepo(a.db)
		messageRepo = messages.NewPostgresRepo(a.db)
		callRepo = calls.NewPostgresRepo(a.db)
		templRepo = templates.NewPostgresRepo(a.db)
		dir = directory.NewPostgresDirectory(a.db)
	} else {
		auditRepo = audit.NewMemoryRepo()
		messageRepo = messages.NewMemoryRepo()
		callRepo = calls.NewMemoryRepo()
		templRepo = templates.NewMemoryRepo()
		dir = directory.NewMemoryDirectory()
	}
	if a.rdb != nil {
		dir = directory.NewCachedDirectory(dir, a.rdb, 0, log)
	}
	a.audit = audit.NewService(auditRepo, log)

	sender, err := a.buildTransport(cfg)
	if err != nil {
		return nil, err
	}

	var deduper messages.Deduper
	if a.rdb != nil {
		deduper = utils.NewOnceMarker(a.rdb, "receipts:seen:", 0)
	}
	a.messages = messages.NewService(messages.Dependencies{
		Repo:      messageRepo,
		Transport: sender,
		Events:    a.dispatcher,
		Audit:     a.audit,
		Deduper:   deduper,
		Log:       log,
	})

	httpClient := &http.Client{Timeout: externalTimeout}
	var (
		tickets calls.Ticketing = ticketing.NewSandbox()
		dialer  calls.Telephony = telephony.NewSandboxDialer()
	)
	if cfg.IsLive() {
		tickets = ticketing.NewZammadClient(cfg.Ticketing.BaseURL, cfg.Ticketing.Token, cfg.Ticketing.Group, httpClient)
		dialer = telephony.NewHTTPDialer(cfg.PBX.BaseURL, cfg.PBX.Token, httpClient)
	}
	a.calls = calls.NewService(calls.Dependencies{
		Repo:      callRepo,
		Directory: dir,
		Ticketing: tickets,
		Telephony: dialer,
		Events:    a.dispatcher,
		Audit:     a.audit,
		Log:       log,
	})

	a.templates = templates.NewService(templates.Dependencies{
		Repo:   templRepo,
		Sender: a.messages,
		Events: a.dispatcher,
		Audit:  a.audit,
		Log:    log,
	})

	a.reports = reporting.NewService(reporting.ServiceSource{Calls: a.calls, Messages: a.messages, Templates: a.templates})

	if a.amqp != nil {
		c, err := transport.NewReceiptConsumer(a.amqp, cfg.RabbitMQ.ReceiptQueue, a.messages.ApplyReceipt, log)
		if err != nil {
			return nil, err
		}
		a.consumer = c
	}

	ok = true
	return a, nil
}

// buildTransport picks the outbound chat transport: RabbitMQ when configured,
// the sandbox otherwise. Either way sends are rate limited.
func (a *app) buildTransport(cfg config.Config) (messages.Transport, error) {
	var next messages.Transport = transport.NewSandbox()
	if cfg.RabbitMQ.URL != "" {
		conn, err := transport.NewConnection(cfg.RabbitMQ.URL, a.log)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		a.amqp = conn
		pub, err := transport.NewPublisher(conn, cfg.RabbitMQ.OutboundQueue)
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		next = pub
	}
	return transport.NewThrottled(next, cfg.Transport.RatePerSecond, cfg.Transport.Burst), nil
}

// Start runs the receipt consumer and the cross-instance event relay.
func (a *app) Start(ctx context.Context) {
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				a.log.Error("receipt consumer stopped", "err", err)
			}
		}()
	}
	if a.relay != nil {
		go func() {
			if err := a.relay.Listen(ctx, a.hub.Handle); err != nil {
				a.log.Error("event relay stopped", "err", err)
			}
		}()
	}
}

// Ready reports whether the backing stores answer.
func (a *app) Ready(ctx context.Context) error {
	if a.db != nil {
		if err := utils.HealthCheck(ctx, a.db, 2*time.Second); err != nil {
			return err
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}
	if a.amqp != nil && !a.amqp.IsConnected() {
		return fmt.Errorf("rabbitmq not connected")
	}
	return nil
}

func (a *app) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.amqp != nil {
		_ = a.amqp.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
