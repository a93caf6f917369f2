// Package report builds the per-tenant inventory report model and renders
// it into channel payloads.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blockedby/stockwatch-os/internal/logger"
	"github.com/blockedby/stockwatch-os/internal/models"
)

// ErrDataAccess classifies inventory store failures. Recoverable at the
// tenant level: the dispatcher records the failure and moves on.
var ErrDataAccess = errors.New("report: inventory data access failed")

// Report content limits.
const (
	lowStockLimit       = 20
	outOfStockLimit     = 20
	movementLimit       = 50
	movementWindowHours = 24
)

// InventoryReader is the read interface over the inventory store.
type InventoryReader interface {
	GetInventorySummary(ctx context.Context, tenantID uuid.UUID) (models.InventorySummary, error)
	GetLowStock(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.LowStockItem, error)
	GetOutOfStock(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.OutOfStockItem, error)
	GetRecentMovements(ctx context.Context, tenantID uuid.UUID, sinceHours, limit int) ([]models.Movement, error)
	GetTotalInventoryValue(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error)
}

// Generator queries the inventory store and assembles ReportModels.
type Generator struct {
	inv InventoryReader
	log *logger.Logger
}

// NewGenerator creates a report generator.
func NewGenerator(inv InventoryReader, log *logger.Logger) *Generator {
	return &Generator{inv: inv, log: log}
}

// Generate builds the immutable report snapshot for one tenant. Every store
// failure is wrapped as ErrDataAccess.
func (g *Generator) Generate(ctx context.Context, tenant models.Tenant) (*models.ReportModel, error) {
	summary, err := g.inv.GetInventorySummary(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: summary: %v", ErrDataAccess, err)
	}

	lowStock, err := g.inv.GetLowStock(ctx, tenant.ID, lowStockLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: low stock: %v", ErrDataAccess, err)
	}

	outOfStock, err := g.inv.GetOutOfStock(ctx, tenant.ID, outOfStockLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: out of stock: %v", ErrDataAccess, err)
	}

	movements, err := g.inv.GetRecentMovements(ctx, tenant.ID, movementWindowHours, movementLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: movements: %v", ErrDataAccess, err)
	}

	totalValue, err := g.inv.GetTotalInventoryValue(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: total value: %v", ErrDataAccess, err)
	}

	g.log.Debug().
		Str("tenant_id", tenant.ID.String()).
		Int("low_stock", len(lowStock)).
		Int("out_of_stock", len(outOfStock)).
		Int("movements", len(movements)).
		Msg("report generated")

	return &models.ReportModel{
		TenantID:    tenant.ID,
		TenantName:  tenant.Name,
		GeneratedAt: time.Now(),
		Summary:     summary,
		LowStock:    lowStock,
		OutOfStock:  outOfStock,
		Movements:   movements,
		TotalValue:  totalValue,
	}, nil
}
