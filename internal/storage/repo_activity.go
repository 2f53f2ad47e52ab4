package storage

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const defaultActivityLimit = 1000

type activityRepository struct {
	db dbtx
}

func (r *activityRepository) Append(ctx context.Context, event *ActivityEvent) error {
	if event == nil {
		return fmt.Errorf("append activity event: event is nil")
	}
	if strings.TrimSpace(event.Action) == "" {
		return fmt.Errorf("append activity event: action is required")
	}
	if event.EntityType == "" {
		event.EntityType, _, _ = strings.Cut(event.Action, ".")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = nowLocal()
	}
	if event.Details == "" {
		event.Details = "{}"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log(id, action, entity_type, entity_id, details, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, event.ID, event.Action, event.EntityType, event.EntityID, event.Details, FormatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("append activity event: %w", classifyError(err))
	}
	return nil
}

// List returns events newest first.
func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]ActivityEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	query := builder.Select("id", "action", "entity_type", "entity_id", "details", "created_at").
		From("activity_log").
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit))
	if filter.Action != "" {
		query = query.Where(sq.Eq{"action": filter.Action})
	}
	if filter.EntityType != "" {
		query = query.Where(sq.Eq{"entity_type": filter.EntityType})
	}
	if filter.EntityID != 0 {
		query = query.Where(sq.Eq{"entity_id": filter.EntityID})
	}

	rows, err := queryBuilt(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []ActivityEvent{}
	for rows.Next() {
		var (
			event   ActivityEvent
			created string
		)
		if err := rows.Scan(&event.ID, &event.Action, &event.EntityType, &event.EntityID, &event.Details, &created); err != nil {
			return nil, fmt.Errorf("list activity events: scan row: %w", err)
		}
		if event.CreatedAt, err = decodeTime("activity_log.created_at", created); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity events: iterate: %w", err)
	}
	return events, nil
}
