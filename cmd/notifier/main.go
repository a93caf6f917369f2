package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blockedby/stockwatch-os/internal/chat"
	"github.com/blockedby/stockwatch-os/internal/config"
	"github.com/blockedby/stockwatch-os/internal/database"
	"github.com/blockedby/stockwatch-os/internal/dispatcher"
	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/migrator"
	"github.com/blockedby/stockwatch-os/internal/nats"
	"github.com/blockedby/stockwatch-os/internal/publisher"
	"github.com/blockedby/stockwatch-os/internal/report"
	"github.com/blockedby/stockwatch-os/internal/repository"
	"github.com/blockedby/stockwatch-os/migrations"
)

func main() {
	dateFlag := flag.String("date", "", "run the batch as if today were this date (YYYY-MM-DD)")
	tenantsFileFlag := flag.String("tenants-file", "", "read tenants from this YAML file instead of the database")
	flag.Parse()

	// 1. Load config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *tenantsFileFlag != "" {
		cfg.TenantsFile = *tenantsFileFlag
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Msg("starting notification batch")

	// 3. Resolve the batch date
	today := time.Now()
	if *dateFlag != "" {
		today, err = time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			log.Fatal().Err(err).Str("date", *dateFlag).Msg("invalid -date, expected YYYY-MM-DD")
		}
	}

	// 4. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 5. Connect to database and migrate
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	mig, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load migrations")
	}
	if err := mig.Up(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	if version, dirty, err := mig.Version(cfg.DatabaseURL); err != nil {
		log.Warn().Err(err).Msg("failed to read schema version")
	} else {
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("database schema ready")
	}

	// 6. Connect to NATS (optional)
	nc, err := nats.New(ctx, cfg.NatsURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
	} else {
		defer nc.Close()
	}

	var pub dispatcher.EventPublisher
	if nc != nil && nc.IsConnected() {
		if err := nc.EnsureStream(ctx, "REPORTS", []string{"reports.>"}); err != nil {
			log.Warn().Err(err).Msg("failed to ensure reports stream")
		}
		pub = publisher.NewNATSPublisher(nc.Conn)
	}

	// 7. Initialize tenant source and repositories
	var tenants dispatcher.TenantSource
	if cfg.TenantsFile != "" {
		log.Info().Str("file", cfg.TenantsFile).Msg("using file tenant source")
		tenants = repository.NewFileTenantSource(cfg.TenantsFile)
	} else {
		tenants = repository.NewTenantsRepository(db.Pool)
	}
	inventoryRepo := repository.NewInventoryRepository(db.Pool)
	runLogRepo := repository.NewRunLogRepository(db.GORM)

	// 8. Initialize dispatcher
	svc := dispatcher.NewService(
		tenants,
		report.NewGenerator(inventoryRepo, log),
		dispatcher.NewSMTPSender(cfg.SMTPTimeout(), log),
		dispatcher.NewGatewaySender(chat.NewClient(cfg.ChatTimeout(), log)),
		pub,
		cfg.Workers,
		cfg.SendRatePerSec,
		log,
	)

	// 9. Run the batch under the run deadline
	runCtx, runCancel := context.WithTimeout(ctx, cfg.RunTimeout())
	defer runCancel()

	run, results, err := svc.RunBatch(runCtx, today)
	if err != nil {
		log.Fatal().Err(err).Msg("batch run failed")
	}

	// 10. Persist the run
	if err := runLogRepo.SaveRun(ctx, run, results); err != nil {
		log.Error().Err(err).Msg("failed to persist run results")
		os.Exit(1)
	}

	log.Info().
		Str("run_id", run.ID.String()).
		Int("sent", run.Sent).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Msg("notification batch complete")
}
