package storage

import (
	"context"
	"fmt"

	"github.com/hoanghai1803/pressroom/internal/mapping"
	"github.com/hoanghai1803/pressroom/internal/transform"
)

var _ mapping.Store = (*Store)(nil)

// StoredMapping returns the tenant's custom field mapping for platform in
// the order it was saved. It returns nil, nil when none is stored.
func (s *Store) StoredMapping(ctx context.Context, tenantID, platform string) ([]mapping.FieldMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT blog_field, target_field, transform_type, transform_format
		 FROM field_mappings
		 WHERE tenant_id = ? AND platform = ?
		 ORDER BY position`, tenantID, platform)
	if err != nil {
		return nil, fmt.Errorf("querying field mappings: %w", err)
	}
	defer rows.Close()

	var out []mapping.FieldMapping
	for rows.Next() {
		var (
			blogField, target string
			typ, format       string
		)
		if err := rows.Scan(&blogField, &target, &typ, &format); err != nil {
			return nil, fmt.Errorf("scanning field mapping: %w", err)
		}
		m := mapping.FieldMapping{BlogField: mapping.BlogField(blogField), TargetField: target}
		if typ != "" {
			m.Transform = &transform.Spec{Type: transform.Type(typ), Format: format}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating field mappings: %w", err)
	}
	return out, nil
}

// SaveMapping replaces the tenant's custom mapping for platform. An empty
// list removes it, which re-enables auto-detection. Every mapping must pass
// FieldMapping.Validate.
func (s *Store) SaveMapping(ctx context.Context, tenantID, platform string, mappings []mapping.FieldMapping) error {
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid field mapping: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning mapping transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM field_mappings WHERE tenant_id = ? AND platform = ?`,
		tenantID, platform); err != nil {
		return fmt.Errorf("clearing field mappings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO field_mappings
			(tenant_id, platform, position, blog_field, target_field, transform_type, transform_format)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing mapping insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range mappings {
		var typ, format string
		if m.Transform != nil {
			typ, format = string(m.Transform.Type), m.Transform.Format
		}
		if _, err := stmt.ExecContext(ctx,
			tenantID, platform, i, string(m.BlogField), m.TargetField, typ, format); err != nil {
			return fmt.Errorf("inserting field mapping %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing field mappings: %w", err)
	}
	return nil
}
