package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SnapshotStore keeps one attempt snapshot row per profile.
type SnapshotStore struct {
	pool    *pgxpool.Pool
	profile string
}

func NewSnapshotStore(pool *pgxpool.Pool, profile string) *SnapshotStore {
	return &SnapshotStore{pool: pool, profile: profile}
}

func (s *SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quiz_attempt_snapshots WHERE profile=$1`, s.profile).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return raw, nil
}

func (s *SnapshotStore) Save(ctx context.Context, data []byte) error {
	var header struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("snapshot is not valid json: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_attempt_snapshots (profile, version, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (profile) DO UPDATE
		SET version = EXCLUDED.version, data = EXCLUDED.data, updated_at = now()`,
		s.profile, header.Version, string(data))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
