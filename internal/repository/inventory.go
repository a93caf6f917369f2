package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/blockedby/stockwatch-os/internal/models"
)

// InventoryRepository reads the inventory facts a report is built from.
// Every query is scoped by tenant id.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// GetInventorySummary returns the headline counts for a tenant.
func (r *InventoryRepository) GetInventorySummary(ctx context.Context, tenantID uuid.UUID) (models.InventorySummary, error) {
	var s models.InventorySummary
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM categories WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM suppliers WHERE tenant_id = $1)
	`, tenantID).Scan(&s.TotalProducts, &s.TotalCategories, &s.TotalSuppliers)
	if err != nil {
		return models.InventorySummary{}, fmt.Errorf("inventory summary: %w", err)
	}
	return s, nil
}

// GetLowStock returns products with 0 < stock <= min_stock, worst first.
func (r *InventoryRepository) GetLowStock(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name, p.stock, p.min_stock, COALESCE(c.name, '')
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = $1 AND p.stock > 0 AND p.stock <= p.min_stock
		ORDER BY p.stock ASC, p.name
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	defer rows.Close()

	var items []models.LowStockItem
	for rows.Next() {
		var item models.LowStockItem
		if err := rows.Scan(&item.Name, &item.CurrentStock, &item.MinStock, &item.Category); err != nil {
			return nil, fmt.Errorf("scan low stock: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetOutOfStock returns products with zero stock.
func (r *InventoryRepository) GetOutOfStock(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.OutOfStockItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name, COALESCE(c.name, '')
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.tenant_id = $1 AND p.stock = 0
		ORDER BY p.name
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("out of stock: %w", err)
	}
	defer rows.Close()

	var items []models.OutOfStockItem
	for rows.Next() {
		var item models.OutOfStockItem
		if err := rows.Scan(&item.Name, &item.Category); err != nil {
			return nil, fmt.Errorf("scan out of stock: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetRecentMovements returns movements inside the trailing window, newest
// first.
func (r *InventoryRepository) GetRecentMovements(ctx context.Context, tenantID uuid.UUID, sinceHours, limit int) ([]models.Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.name, m.type, m.quantity, m.user_name, m.created_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE m.tenant_id = $1 AND m.created_at > NOW() - make_interval(hours => $2)
		ORDER BY m.created_at DESC
		LIMIT $3
	`, tenantID, sinceHours, limit)
	if err != nil {
		return nil, fmt.Errorf("recent movements: %w", err)
	}
	defer rows.Close()

	var movements []models.Movement
	for rows.Next() {
		var m models.Movement
		if err := rows.Scan(&m.ProductName, &m.Type, &m.Quantity, &m.UserName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// GetTotalInventoryValue returns Σ(stock × unit_price) for the tenant.
func (r *InventoryRepository) GetTotalInventoryValue(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(stock * unit_price), 0)
		FROM products
		WHERE tenant_id = $1
	`, tenantID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total inventory value: %w", err)
	}
	return total, nil
}
