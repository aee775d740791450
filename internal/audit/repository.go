package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teleatencion/platform/internal/shared/errors"
	"github.com/teleatencion/platform/internal/shared/types"
)

// Repository stores the activity trail in PostgreSQL. The table is insert
// only; nothing in the platform updates or deletes rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new activity trail repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append chains the entry to the latest stored one and inserts it. Appends
// are serialized with an advisory lock so two writers cannot both chain to
// the same predecessor.
func (r *Repository) Append(ctx context.Context, actorID types.ID, actorName, facility, action, resourceType string, resourceID types.ID, detail map[string]any) (*ActivityEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin audit transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('audit.activity_log'))`); err != nil {
		return nil, errors.Wrap(err, "failed to lock activity trail")
	}

	var prevHash string
	err = tx.QueryRow(ctx, `
		SELECT hash FROM audit.activity_log
		ORDER BY sequence DESC
		LIMIT 1`).Scan(&prevHash)
	if err != nil && err != pgx.ErrNoRows {
		return nil, errors.Wrap(err, "failed to read chain head")
	}

	entry := NewActivityEntry(
		actorID, actorName, facility,
		action, resourceType, resourceID,
		detail, prevHash,
	)

	err = tx.QueryRow(ctx, `
		INSERT INTO audit.activity_log (
			id, timestamp, actor_id, actor_name, facility,
			action, resource_type, resource_id, detail, prev_hash, hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING sequence`,
		entry.ID, entry.Timestamp, entry.ActorID, entry.ActorName, entry.Facility,
		entry.Action, entry.ResourceType, entry.ResourceID, entry.Detail,
		entry.PrevHash, entry.Hash,
	).Scan(&entry.Sequence)
	if err != nil {
		return nil, errors.Wrap(err, "failed to append activity entry")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit activity entry")
	}

	return entry, nil
}

// List returns trail entries matching the filter, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]ActivityEntry, error) {
	query := `
		SELECT id, sequence, timestamp, hash, prev_hash,
			actor_id, actor_name, facility,
			action, resource_type, resource_id, detail
		FROM audit.activity_log
		WHERE 1=1`

	args := []any{}
	argN := 0

	addArg := func(clause string, value any) {
		argN++
		query += fmt.Sprintf(" AND %s = $%d", clause, argN)
		args = append(args, value)
	}

	if !filter.ActorID.IsZero() {
		addArg("actor_id", filter.ActorID)
	}
	if filter.Action != "" {
		addArg("action", filter.Action)
	}
	if filter.ResourceType != "" {
		addArg("resource_type", filter.ResourceType)
	}
	if !filter.ResourceID.IsZero() {
		addArg("resource_id", filter.ResourceID)
	}
	if filter.From != nil {
		argN++
		query += fmt.Sprintf(" AND timestamp >= $%d", argN)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		argN++
		query += fmt.Sprintf(" AND timestamp <= $%d", argN)
		args = append(args, *filter.To)
	}

	query += " ORDER BY sequence DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	argN++
	query += fmt.Sprintf(" LIMIT $%d", argN)
	args = append(args, limit)

	if filter.Offset > 0 {
		argN++
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query activity trail")
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		err := rows.Scan(
			&e.ID, &e.Sequence, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.ActorID, &e.ActorName, &e.Facility,
			&e.Action, &e.ResourceType, &e.ResourceID, &e.Detail,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan activity entry")
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Verify walks the whole chain in sequence order and reports the first
// broken entry, if any
func (r *Repository) Verify(ctx context.Context) (int64, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sequence, timestamp, hash, prev_hash,
			actor_id, actor_name, facility,
			action, resource_type, resource_id, detail
		FROM audit.activity_log
		ORDER BY sequence ASC`)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to read activity trail")
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		err := rows.Scan(
			&e.ID, &e.Sequence, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.ActorID, &e.ActorName, &e.Facility,
			&e.Action, &e.ResourceType, &e.ResourceID, &e.Detail,
		)
		if err != nil {
			return 0, false, errors.Wrap(err, "failed to scan activity entry")
		}
		entries = append(entries, e)
	}

	broken, ok := VerifyChain(entries)
	return broken, ok, nil
}
