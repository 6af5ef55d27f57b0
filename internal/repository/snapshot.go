package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dabbathon/internal/constants"
	"dabbathon/internal/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// SnapshotRepository keeps the whole AppState as one JSON blob under a fixed key.
type SnapshotRepository struct {
	db     *sql.DB
	key    string
	logger zerolog.Logger
}

func NewSnapshotRepository(sqlDB *sql.DB, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     sqlDB,
		key:    constants.SnapshotKey,
		logger: logger.With().Str("component", "snapshot_repository").Logger(),
	}
}

// SaveSnapshot satisfies store.Persister.
func (r *SnapshotRepository) SaveSnapshot(state *domain.AppState) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	return r.Save(ctx, state)
}

func (r *SnapshotRepository) Save(ctx context.Context, state *domain.AppState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		r.key, body, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load returns the cached state, or ok=false when nothing usable is stored. A
// corrupt blob is reported as missing.
func (r *SnapshotRepository) Load(ctx context.Context) (*domain.AppState, bool, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE key = ?`, r.key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		r.logger.Debug().Str("key", r.key).Msg("no cached snapshot")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	state := domain.NewAppState()
	if err := json.Unmarshal(body, state); err != nil {
		r.logger.Warn().Err(err).Str("key", r.key).Msg("discarding unreadable snapshot")
		return nil, false, nil
	}
	return state, true, nil
}
