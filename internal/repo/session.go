package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/portpilot/portal/internal/domain"
)

// SessionRepo persists signed-in sessions.
type SessionRepo interface {
	// Create stores a new session and returns it with its generated ID.
	Create(ctx context.Context, s domain.Session) (domain.Session, error)

	// Get returns the session with id, refreshing its last-seen time.
	// Returns domain.ErrNotFound if it does not exist or has been idle longer than maxIdle.
	Get(ctx context.Context, id uuid.UUID, maxIdle time.Duration) (domain.Session, error)

	// Delete removes a session. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteIdle removes every session idle longer than maxIdle and returns
	// the IDs it removed.
	DeleteIdle(ctx context.Context, maxIdle time.Duration) ([]uuid.UUID, error)
}

// pgSessionRepo is the Postgres implementation of SessionRepo.
type pgSessionRepo struct {
	db db
}

// NewSessionRepo constructs a SessionRepo backed by the provided db connection.
func NewSessionRepo(db db) SessionRepo {
	return &pgSessionRepo{db: db}
}

// Create inserts a session row. The user profile is stored as JSONB.
func (r *pgSessionRepo) Create(ctx context.Context, s domain.Session) (domain.Session, error) {
	const q = `
		INSERT INTO sessions (ok, token, user_profile)
		VALUES (@ok, @token, @user_profile)
		RETURNING id, ok, token, user_profile, created_at`

	profile, err := json.Marshal(s.User)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repo.SessionRepo.Create: encode user: %w", err)
	}

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"ok":           s.OK,
		"token":        s.Token,
		"user_profile": profile,
	})
	result, err := scanSession(row)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repo.SessionRepo.Create: %w", err)
	}
	return result, nil
}

// Get bumps last_seen_at and returns the row in one statement, so an idle
// session is never revived by the lookup itself.
func (r *pgSessionRepo) Get(ctx context.Context, id uuid.UUID, maxIdle time.Duration) (domain.Session, error) {
	const q = `
		UPDATE sessions
		SET last_seen_at = now()
		WHERE id = @id
		  AND last_seen_at > now() - make_interval(secs => @idle_secs)
		RETURNING id, ok, token, user_profile, created_at`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "idle_secs": maxIdle.Seconds()})
	result, err := scanSession(row)
	if err != nil {
		return domain.Session{}, fmt.Errorf("repo.SessionRepo.Get: %w", err)
	}
	return result, nil
}

// Delete removes a session by ID.
func (r *pgSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM sessions WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.SessionRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.SessionRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteIdle purges sessions whose last_seen_at is older than maxIdle. This
// includes sessions Get has already refused as idle.
func (r *pgSessionRepo) DeleteIdle(ctx context.Context, maxIdle time.Duration) ([]uuid.UUID, error) {
	const q = `
		DELETE FROM sessions
		WHERE last_seen_at <= now() - make_interval(secs => @idle_secs)
		RETURNING id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"idle_secs": maxIdle.Seconds()})
	if err != nil {
		return nil, fmt.Errorf("repo.SessionRepo.DeleteIdle: %w", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (uuid.UUID, error) {
		var id pgtype.UUID
		err := row.Scan(&id)
		return uuid.UUID(id.Bytes), err
	})
	if err != nil {
		return nil, fmt.Errorf("repo.SessionRepo.DeleteIdle: %w", err)
	}
	return ids, nil
}

// scanSession maps a single database row into a domain.Session.
func scanSession(s scanner) (domain.Session, error) {
	var (
		out     domain.Session
		id      pgtype.UUID
		profile []byte
	)
	err := s.Scan(&id, &out.OK, &out.Token, &profile, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, err
	}
	if err := json.Unmarshal(profile, &out.User); err != nil {
		return domain.Session{}, fmt.Errorf("decode user: %w", err)
	}
	out.ID = uuid.UUID(id.Bytes)
	return out, nil
}
