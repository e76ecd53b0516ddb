package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamvault-go/internal/models"
	"streamvault-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DefaultListLimit applies when a listing does not set its own limit.
const DefaultListLimit = 50

func (s *Service) RecordActivity(ctx context.Context, entry models.ActivityEntry) error {
	if err := store.ValidateEntry(entry); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, queryInsertActivity,
		entry.Id, entry.Timestamp.UnixNano(), string(entry.Kind), entry.Title, entry.Detail, entry.TxHash)
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Warn("Duplicate activity entry, skipping", zap.String("id", entry.Id))
			return fmt.Errorf("%w: id %s already exists", store.ErrDuplicateEntry, entry.Id)
		}
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}

	zap.L().Debug("Activity entry journaled",
		zap.String("id", entry.Id),
		zap.String("kind", string(entry.Kind)),
		zap.String("title", entry.Title))
	return nil
}

// Record lets the journal be attached to an activity log as a sink.
func (s *Service) Record(entry models.ActivityEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout())
	defer cancel()
	return s.RecordActivity(ctx, entry)
}

func (s *Service) ListActivity(ctx context.Context, params store.ListActivityParams) ([]models.ActivityEntry, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	var since int64
	if !params.Since.IsZero() {
		since = params.Since.UnixNano()
	}

	rows, err := s.db.QueryContext(ctx, queryListActivity,
		string(params.Kind), string(params.Kind),
		params.TxHash, params.TxHash,
		since, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []models.ActivityEntry
	for rows.Next() {
		var entry models.ActivityEntry
		var createdAt int64
		var kind string
		if err := rows.Scan(&entry.Id, &createdAt, &kind, &entry.Title, &entry.Detail, &entry.TxHash); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		entry.Timestamp = time.Unix(0, createdAt)
		entry.Kind = models.ActivityKind(kind)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return entries, nil
}

func (s *Service) CountActivity(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountActivity).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return count, nil
}

func (s *Service) timeout() time.Duration {
	if s.writeTimeout <= 0 {
		return 5 * time.Second
	}
	return s.writeTimeout
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
