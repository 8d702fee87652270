package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hoanghai1803/pressroom/internal/models"
)

const integrationColumns = `id, tenant_id, platform, name, config, status,
	health_status, last_error, last_checked_at, created_at, updated_at`

// CreateIntegration inserts a new integration. An empty ID is replaced with a
// fresh UUID; empty status fields get their initial values.
func (s *Store) CreateIntegration(ctx context.Context, in *models.Integration) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = models.IntegrationStatusPending
	}
	if in.HealthStatus == "" {
		in.HealthStatus = models.HealthUnknown
	}
	now := s.now().UTC().Truncate(timeResolution)
	in.CreatedAt, in.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO integrations (`+integrationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.TenantID, in.Platform, in.Name, in.Config, in.Status,
		in.HealthStatus, in.LastError, formatTimePtr(in.LastCheckedAt),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting integration: %w", err)
	}
	return nil
}

// GetIntegration returns a tenant's integration by ID.
// Returns nil, ErrNotFound if no matching row exists.
func (s *Store) GetIntegration(ctx context.Context, tenantID, id string) (*models.Integration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE tenant_id = ? AND id = ?`,
		tenantID, id)

	in, err := scanIntegration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting integration %s: %w", id, err)
	}
	return in, nil
}

// ListIntegrations returns every integration of a tenant ordered by name.
func (s *Store) ListIntegrations(ctx context.Context, tenantID string) ([]models.Integration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations
		 WHERE tenant_id = ? ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	return scanIntegrations(rows)
}

// ListActiveIntegrations returns integrations across all tenants whose
// status is active and which still hold credentials.
func (s *Store) ListActiveIntegrations(ctx context.Context) ([]models.Integration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations
		 WHERE status = ? AND config != '' ORDER BY tenant_id, id`,
		models.IntegrationStatusActive)
	if err != nil {
		return nil, fmt.Errorf("querying active integrations: %w", err)
	}
	defer rows.Close()

	return scanIntegrations(rows)
}

// UpdateIntegrationConfig replaces the sealed config and status of an
// integration, clearing any previous error.
func (s *Store) UpdateIntegrationConfig(ctx context.Context, tenantID, id, config, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET config = ?, status = ?, last_error = '', updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		config, status, formatTime(s.now()), tenantID, id)
	if err != nil {
		return fmt.Errorf("updating integration %s config: %w", id, err)
	}
	return requireRow(res, "integration", id)
}

// DisconnectIntegration clears the integration's credentials and marks it
// inactive. The row itself is kept so the publish history stays readable.
func (s *Store) DisconnectIntegration(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET config = '', status = ?, health_status = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		models.IntegrationStatusInactive, models.HealthUnknown, formatTime(s.now()),
		tenantID, id)
	if err != nil {
		return fmt.Errorf("disconnecting integration %s: %w", id, err)
	}
	return requireRow(res, "integration", id)
}

// RecordHealth stores the outcome of a connection check. An error health
// also moves an active integration to the error status, and any other
// health moves an errored one back to active.
func (s *Store) RecordHealth(ctx context.Context, id, health, lastError string, checkedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET
			health_status = ?,
			last_error = ?,
			last_checked_at = ?,
			status = CASE
				WHEN status = ? AND ? = ? THEN ?
				WHEN status = ? AND ? != ? THEN ?
				ELSE status
			END
		 WHERE id = ?`,
		health, lastError, formatTime(checkedAt),
		models.IntegrationStatusActive, health, models.HealthError, models.IntegrationStatusError,
		models.IntegrationStatusError, health, models.HealthError, models.IntegrationStatusActive,
		id)
	if err != nil {
		return fmt.Errorf("recording health for integration %s: %w", id, err)
	}
	return requireRow(res, "integration", id)
}

func scanIntegration(row scanner) (*models.Integration, error) {
	var (
		in                   models.Integration
		lastChecked          sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&in.ID, &in.TenantID, &in.Platform, &in.Name, &in.Config, &in.Status,
		&in.HealthStatus, &in.LastError, &lastChecked, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		in.LastCheckedAt = parseTimePtr(&lastChecked.String)
	}
	in.CreatedAt = parseTime(createdAt)
	in.UpdatedAt = parseTime(updatedAt)
	return &in, nil
}

func scanIntegrations(rows *sql.Rows) ([]models.Integration, error) {
	out := []models.Integration{}
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning integration: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating integrations: %w", err)
	}
	return out, nil
}
