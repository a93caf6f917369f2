// Command smtp-check validates a tenant's SMTP settings by running the
// protocol up to and including authentication, then quitting. No message
// is sent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/blockedby/stockwatch-os/internal/config"
	"github.com/blockedby/stockwatch-os/internal/database"
	"github.com/blockedby/stockwatch-os/internal/dispatcher"
	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/mail"
	"github.com/blockedby/stockwatch-os/internal/models"
	"github.com/blockedby/stockwatch-os/internal/repository"
)

func main() {
	tenantFlag := flag.String("tenant", "", "tenant name (or id) to check; empty checks every tenant with mail enabled")
	tenantsFileFlag := flag.String("tenants-file", "", "read tenants from this YAML file instead of the database")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *tenantsFileFlag != "" {
		cfg.TenantsFile = *tenantsFileFlag
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	ctx := context.Background()

	var tenants dispatcher.TenantSource
	if cfg.TenantsFile != "" {
		tenants = repository.NewFileTenantSource(cfg.TenantsFile)
	} else {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		tenants = repository.NewTenantsRepository(db.Pool)
	}

	list, err := tenants.ListTenants(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list tenants")
	}

	checked, failed := 0, 0
	for _, t := range list {
		if *tenantFlag != "" && !strings.EqualFold(t.Name, *tenantFlag) && t.ID.String() != *tenantFlag {
			continue
		}
		if !t.MailEnabled || !t.MailConfigured() {
			if *tenantFlag != "" {
				fmt.Printf("SKIP  %s: mail channel disabled or incomplete\n", t.Name)
			}
			continue
		}

		checked++
		if err := verify(ctx, t, cfg.SMTPTimeout(), log); err != nil {
			failed++
			fmt.Printf("FAIL  %s (%s:%d): %v\n", t.Name, t.SMTP.Host, t.SMTP.Port, err)
			continue
		}
		fmt.Printf("OK    %s (%s:%d)\n", t.Name, t.SMTP.Host, t.SMTP.Port)
	}

	if checked == 0 {
		fmt.Fprintln(os.Stderr, "no matching tenant with a configured mail channel")
		os.Exit(2)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func verify(ctx context.Context, t models.Tenant, timeout time.Duration, log *logger.Logger) error {
	client := mail.NewClient(mail.Config{
		Host:       t.SMTP.Host,
		Port:       t.SMTP.Port,
		Username:   t.SMTP.Username,
		Password:   t.SMTP.Password,
		Encryption: t.SMTP.Encryption,
		Timeout:    timeout,
	}, log)
	return client.Verify(ctx)
}
