package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventorySummary holds the headline counts of a tenant's catalog.
type InventorySummary struct {
	TotalProducts   int `json:"total_products"`
	TotalCategories int `json:"total_categories"`
	TotalSuppliers  int `json:"total_suppliers"`
}

// LowStockItem is a product at or below its minimum stock level.
type LowStockItem struct {
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	MinStock     int    `json:"min_stock"`
	Category     string `json:"category"`
}

// OutOfStockItem is a product with zero stock.
type OutOfStockItem struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// MovementType distinguishes stock entries from withdrawals.
type MovementType string

// MovementType constants match the stock_movements.type column.
const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

// Movement is a recent stock movement line for the report.
type Movement struct {
	ProductName string       `json:"product_name"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	UserName    string       `json:"user_name"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsEntry reports whether the movement added stock.
func (m Movement) IsEntry() bool { return m.Type == MovementIn }

// ReportModel is the immutable snapshot rendered into every channel payload.
// Built once per tenant per run and shared between channels.
type ReportModel struct {
	TenantID    uuid.UUID        `json:"tenant_id"`
	TenantName  string           `json:"tenant_name"`
	GeneratedAt time.Time        `json:"generated_at"`
	Summary     InventorySummary `json:"summary"`
	LowStock    []LowStockItem   `json:"low_stock"`
	OutOfStock  []OutOfStockItem `json:"out_of_stock"`
	Movements   []Movement       `json:"movements"`
	TotalValue  decimal.Decimal  `json:"total_value"`
}
