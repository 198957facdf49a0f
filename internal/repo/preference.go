package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PreferenceRepo persists small per-browser UI settings as JSON values keyed
// by client ID and preference key. Values never expire.
type PreferenceRepo interface {
	// List returns every preference stored for clientID. A client with no
	// stored preferences gets an empty map, not an error.
	List(ctx context.Context, clientID uuid.UUID) (map[string]json.RawMessage, error)

	// Put stores value under key for clientID, replacing any previous value.
	Put(ctx context.Context, clientID uuid.UUID, key string, value json.RawMessage) error
}

// pgPreferenceRepo is the Postgres implementation of PreferenceRepo.
type pgPreferenceRepo struct {
	db db
}

// NewPreferenceRepo constructs a PreferenceRepo backed by the provided db connection.
func NewPreferenceRepo(db db) PreferenceRepo {
	return &pgPreferenceRepo{db: db}
}

// List returns all preferences of clientID.
func (r *pgPreferenceRepo) List(ctx context.Context, clientID uuid.UUID) (map[string]json.RawMessage, error) {
	const q = `
		SELECT pref_key, value
		FROM preferences
		WHERE client_id = @client_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"client_id": clientID})
	if err != nil {
		return nil, fmt.Errorf("repo.PreferenceRepo.List: %w", err)
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("repo.PreferenceRepo.List: scan: %w", err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.PreferenceRepo.List: rows: %w", err)
	}
	return out, nil
}

// Put upserts one preference.
func (r *pgPreferenceRepo) Put(ctx context.Context, clientID uuid.UUID, key string, value json.RawMessage) error {
	const q = `
		INSERT INTO preferences (client_id, pref_key, value)
		VALUES (@client_id, @pref_key, @value)
		ON CONFLICT (client_id, pref_key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{
		"client_id": clientID,
		"pref_key":  key,
		"value":     []byte(value),
	})
	if err != nil {
		return fmt.Errorf("repo.PreferenceRepo.Put: %w", err)
	}
	return nil
}
