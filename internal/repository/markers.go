package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// MarkerRepository records which reminders were already sent, per team.
type MarkerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMarkerRepository(sqlDB *sql.DB, logger zerolog.Logger) *MarkerRepository {
	return &MarkerRepository{
		db:     sqlDB,
		logger: logger.With().Str("component", "marker_repository").Logger(),
	}
}

func (r *MarkerRepository) Has(ctx context.Context, teamID, marker string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM auto_ping_markers WHERE team_id = ? AND marker = ?`,
		teamID, marker,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to read marker %s for %s: %w", marker, teamID, err)
	}
	return n > 0, nil
}

// Mark stores the marker; marking twice is a no-op.
func (r *MarkerRepository) Mark(ctx context.Context, teamID, marker string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO auto_ping_markers (team_id, marker, created_at) VALUES (?, ?, ?)`,
		teamID, marker, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to write marker %s for %s: %w", marker, teamID, err)
	}
	r.logger.Debug().Str("team_id", teamID).Str("marker", marker).Msg("marker recorded")
	return nil
}

func (r *MarkerRepository) All(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT team_id, marker FROM auto_ping_markers ORDER BY team_id, created_at, marker`)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var teamID, marker string
		if err := rows.Scan(&teamID, &marker); err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		out[teamID] = append(out[teamID], marker)
	}
	return out, rows.Err()
}
