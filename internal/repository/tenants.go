// Package repository contains the data access layer: pgx raw-SQL read
// repositories for tenants and inventory, a GORM write repository for the
// run log, and a YAML-backed tenant source for database-less runs.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blockedby/stockwatch-os/internal/models"
)

// TenantsRepository reads tenant channel configuration.
type TenantsRepository struct {
	pool *pgxpool.Pool
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(pool *pgxpool.Pool) *TenantsRepository {
	return &TenantsRepository{pool: pool}
}

// ListTenants returns every tenant with its channel configuration.
func (r *TenantsRepository) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name,
		       mail_enabled, mail_to, mail_frequency,
		       smtp_host, smtp_port, smtp_username, smtp_password,
		       smtp_from_addr, smtp_from_name, smtp_encryption,
		       chat_enabled, chat_number, chat_frequency,
		       chat_gateway_url, chat_api_key, chat_instance,
		       created_at, updated_at
		FROM tenants
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		err := rows.Scan(
			&t.ID, &t.Name,
			&t.MailEnabled, &t.MailTo, &t.MailFrequency,
			&t.SMTP.Host, &t.SMTP.Port, &t.SMTP.Username, &t.SMTP.Password,
			&t.SMTP.FromAddr, &t.SMTP.FromName, &t.SMTP.Encryption,
			&t.ChatEnabled, &t.ChatNumber, &t.ChatFrequency,
			&t.ChatGatewayURL, &t.ChatAPIKey, &t.ChatInstance,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	return tenants, nil
}
