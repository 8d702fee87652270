package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hoanghai1803/pressroom/internal/models"
)

const publishResultColumns = `id, post_id, integration_id, attempt, action, success,
	published, item_id, site_id, collection_id, external_url, stage, error,
	error_code, created_at`

// AppendPublishResult records one attempt in the append-only audit log. The
// attempt number is assigned here as one past the highest recorded for the
// (post, integration) pair; rec.ID, rec.Attempt and rec.CreatedAt are filled
// in on success.
func (s *Store) AppendPublishResult(ctx context.Context, rec *models.PublishRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning publish result transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt), 0) FROM publish_results
		 WHERE post_id = ? AND integration_id = ?`,
		rec.PostID, rec.IntegrationID).Scan(&last); err != nil {
		return fmt.Errorf("reading last attempt: %w", err)
	}

	rec.Attempt = last + 1
	rec.CreatedAt = s.now().UTC().Truncate(timeResolution)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO publish_results
			(post_id, integration_id, attempt, action, success, published, item_id,
			 site_id, collection_id, external_url, stage, error, error_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PostID, rec.IntegrationID, rec.Attempt, rec.Action,
		boolToInt(rec.Success), boolToInt(rec.Published), rec.ItemID,
		rec.SiteID, rec.CollectionID, rec.ExternalURL, rec.Stage, rec.Error,
		rec.ErrorCode, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting publish result: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("reading publish result id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing publish result: %w", err)
	}
	return nil
}

// ListPublishResults returns the audit log for a post, newest attempt first.
// An empty integrationID lists attempts against every integration.
func (s *Store) ListPublishResults(ctx context.Context, postID, integrationID string) ([]models.PublishRecord, error) {
	query := `SELECT ` + publishResultColumns + ` FROM publish_results WHERE post_id = ?`
	args := []any{postID}
	if integrationID != "" {
		query += ` AND integration_id = ?`
		args = append(args, integrationID)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying publish results: %w", err)
	}
	defer rows.Close()

	out := []models.PublishRecord{}
	for rows.Next() {
		rec, err := scanPublishResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning publish result: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publish results: %w", err)
	}
	return out, nil
}

// CurrentPublication returns the latest successful attempt that left an item
// on the platform for (post, integration). It returns ErrNotFound when the
// post was never published there or the item has since been deleted.
func (s *Store) CurrentPublication(ctx context.Context, postID, integrationID string) (*models.PublishRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+publishResultColumns+` FROM publish_results
		 WHERE post_id = ? AND integration_id = ? AND success = 1 AND item_id != ''
		 ORDER BY attempt DESC LIMIT 1`, postID, integrationID)

	rec, err := scanPublishResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting current publication: %w", err)
	}
	if rec.Action == models.ActionDelete {
		return nil, ErrNotFound
	}
	return rec, nil
}

func scanPublishResult(row scanner) (*models.PublishRecord, error) {
	var (
		rec                models.PublishRecord
		success, published int
		createdAt          string
	)
	if err := row.Scan(
		&rec.ID, &rec.PostID, &rec.IntegrationID, &rec.Attempt, &rec.Action, &success,
		&published, &rec.ItemID, &rec.SiteID, &rec.CollectionID, &rec.ExternalURL,
		&rec.Stage, &rec.Error, &rec.ErrorCode, &createdAt,
	); err != nil {
		return nil, err
	}
	rec.Success = success == 1
	rec.Published = published == 1
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}
