package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reverb-labs/recall/internal/domain"
	"github.com/reverb-labs/recall/internal/pagination"
)

// SessionRepository persists sessions and their entries. Sessions are the
// system of record; the chunk index is rebuilt from them.
type SessionRepository struct {
	db dbtx
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: pool}
}

func NewSessionRepositoryWithTx(tx pgx.Tx) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (id, owner_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.OwnerID, s.Title, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_id, title, created_at, updated_at FROM sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByOwner pages sessions newest-first with a keyset cursor.
func (r *SessionRepository) ListByOwner(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*pagination.PageResult[domain.Session], error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error
	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, owner_id, title, created_at, updated_at
			 FROM sessions
			 WHERE owner_id = $1 AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			ownerID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, owner_id, title, created_at, updated_at
			 FROM sessions
			 WHERE owner_id = $1
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			ownerID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	next := ""
	if hasMore {
		next = pagination.EncodeCursor(items[len(items)-1].ID, items[len(items)-1].UpdatedAt)
	}
	return &pagination.PageResult[domain.Session]{Items: items, Cursor: next, HasMore: hasMore}, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// AddEntry appends one entry and bumps the session's updated_at.
func (r *SessionRepository) AddEntry(ctx context.Context, e *domain.Entry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO entries (id, session_id, speaker, content, recording_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.SessionID, e.Speaker, e.Content, e.RecordingKey, e.CreatedAt,
	)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`UPDATE sessions SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), e.SessionID,
	)
	return err
}

// ListEntries returns a session's entries in insertion order.
func (r *SessionRepository) ListEntries(ctx context.Context, sessionID string) ([]domain.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, speaker, content, recording_key, created_at
		 FROM entries
		 WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Speaker, &e.Content, &e.RecordingKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
