// Command preview renders one tenant's inventory report to stdout without
// sending anything. Operator debugging tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/blockedby/stockwatch-os/internal/config"
	"github.com/blockedby/stockwatch-os/internal/database"
	"github.com/blockedby/stockwatch-os/internal/dispatcher"
	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/models"
	"github.com/blockedby/stockwatch-os/internal/report"
	"github.com/blockedby/stockwatch-os/internal/repository"
)

func main() {
	tenantFlag := flag.String("tenant", "", "tenant name (or id) to render")
	formatFlag := flag.String("format", "text", "output format: text or html")
	tenantsFileFlag := flag.String("tenants-file", "", "read tenants from this YAML file instead of the database")
	flag.Parse()

	if *tenantFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: preview -tenant <name> [-format text|html] [-tenants-file <path>]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *tenantsFileFlag != "" {
		cfg.TenantsFile = *tenantsFileFlag
	}

	// keep stdout clean for the rendered report
	if err := logger.Init("error", cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var tenants dispatcher.TenantSource
	if cfg.TenantsFile != "" {
		tenants = repository.NewFileTenantSource(cfg.TenantsFile)
	} else {
		tenants = repository.NewTenantsRepository(db.Pool)
	}

	tenant, err := findTenant(ctx, tenants, *tenantFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("tenant lookup failed")
	}

	gen := report.NewGenerator(repository.NewInventoryRepository(db.Pool), log)
	rep, err := gen.Generate(ctx, tenant)
	if err != nil {
		log.Fatal().Err(err).Msg("report generation failed")
	}

	switch *formatFlag {
	case "text":
		fmt.Print(report.FormatText(rep))
	case "html":
		html, err := report.RenderHTML(rep)
		if err != nil {
			log.Fatal().Err(err).Msg("html rendering failed")
		}
		fmt.Print(html)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q, expected text or html\n", *formatFlag)
		os.Exit(2)
	}
}

func findTenant(ctx context.Context, src dispatcher.TenantSource, key string) (models.Tenant, error) {
	tenants, err := src.ListTenants(ctx)
	if err != nil {
		return models.Tenant{}, err
	}
	for _, t := range tenants {
		if strings.EqualFold(t.Name, key) || t.ID.String() == key {
			return t, nil
		}
	}
	return models.Tenant{}, fmt.Errorf("tenant %q not found", key)
}
