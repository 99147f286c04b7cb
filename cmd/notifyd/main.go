package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/legiswatch/notify/pkg/api"
	"github.com/legiswatch/notify/pkg/config"
	"github.com/legiswatch/notify/pkg/dispatch"
	"github.com/legiswatch/notify/pkg/httpserver"
	"github.com/legiswatch/notify/pkg/logger"
	"github.com/legiswatch/notify/pkg/pacing"
	"github.com/legiswatch/notify/pkg/pg"
	"github.com/legiswatch/notify/pkg/redis"
	"github.com/legiswatch/notify/pkg/sender"
)

type appConfig struct {
	// SenderDriver selects the outbound email backend: postmark or dev.
	SenderDriver string `env:"SENDER_DRIVER" envDefault:"postmark"`
	// PacingStore selects where send-rate counters live: memory or redis.
	// Use redis when more than one instance runs against the same
	// provider account.
	PacingStore string `env:"PACING_STORE" envDefault:"memory"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg)

	var app appConfig
	config.MustLoad(&app)

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	storage, err := dispatch.NewPGStorage(pool)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	readyChecks := []func(context.Context) error{pg.Healthcheck(pool)}

	var pacingCfg pacing.Config
	config.MustLoad(&pacingCfg)

	var pacingStore pacing.Store
	switch app.PacingStore {
	case "redis":
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		pacingStore, err = pacing.NewRedisStore(client)
		if err != nil {
			return fmt.Errorf("init pacing store: %w", err)
		}
		readyChecks = append(readyChecks, redis.Healthcheck(client))
	case "memory":
		pacingStore = pacing.NewMemoryStore()
	default:
		return fmt.Errorf("unknown pacing store %q", app.PacingStore)
	}

	pacer, err := pacing.NewPacer(pacingStore, "email", pacingCfg)
	if err != nil {
		return fmt.Errorf("init pacer: %w", err)
	}

	var snd sender.Sender
	switch app.SenderDriver {
	case "postmark":
		var senderCfg sender.Config
		config.MustLoad(&senderCfg)
		snd, err = sender.NewPostmarkSender(senderCfg)
		if err != nil {
			return fmt.Errorf("init postmark sender: %w", err)
		}
	case "dev":
		snd = sender.NewDevSender(log)
	default:
		return fmt.Errorf("unknown sender driver %q", app.SenderDriver)
	}

	var dispatchCfg dispatch.Config
	config.MustLoad(&dispatchCfg)

	dispatcher, err := dispatch.NewDispatcher(storage, snd,
		dispatch.WithConfig(dispatchCfg),
		dispatch.WithLogger(log),
		dispatch.WithPacer(pacer),
	)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	var apiCfg api.Config
	config.MustLoad(&apiCfg)

	router, err := api.NewRouter(dispatcher,
		api.WithSharedSecret(apiCfg.SharedSecret),
		api.WithLogger(log),
		api.WithReadyChecks(readyChecks...),
	)
	if err != nil {
		return fmt.Errorf("init router: %w", err)
	}

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, router)
}
