package store

import (
	"context"
	"errors"
	"time"

	"streamvault-go/internal/models"
)

// Sentinel errors shared across all journal implementations.
var (
	ErrDuplicateEntry = errors.New("duplicate activity entry")
	ErrInvalidEntry   = errors.New("invalid activity entry")
)

// ListActivityParams narrows a journal listing. Zero values mean no filter.
type ListActivityParams struct {
	Kind   models.ActivityKind
	TxHash string
	Since  time.Time
	Limit  int
	Offset int
}

// ActivityStore defines the contract for persisting activity entries beyond
// the bounded in-memory log.
type ActivityStore interface {
	RecordActivity(ctx context.Context, entry models.ActivityEntry) error
	ListActivity(ctx context.Context, params ListActivityParams) ([]models.ActivityEntry, error)
	CountActivity(ctx context.Context) (int, error)

	// --- Lifecycle ---
	Close()
}

// ValidateEntry reports whether an entry carries the fields every backend
// needs to store it.
func ValidateEntry(entry models.ActivityEntry) error {
	if entry.Id == "" {
		return errors.Join(ErrInvalidEntry, errors.New("id is required"))
	}
	if entry.Title == "" {
		return errors.Join(ErrInvalidEntry, errors.New("title is required"))
	}
	switch entry.Kind {
	case models.ActivityInfo, models.ActivityOk, models.ActivityWarn, models.ActivityTx:
	default:
		return errors.Join(ErrInvalidEntry, errors.New("unknown kind "+string(entry.Kind)))
	}
	if entry.Timestamp.IsZero() {
		return errors.Join(ErrInvalidEntry, errors.New("timestamp is required"))
	}
	return nil
}
