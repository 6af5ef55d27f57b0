package service

import (
	"context"
	"fmt"

	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"
)

// SeedDefaults writes the default config document when the backend has no
// metrics yet. It reports whether anything was written.
func (o *Operations) SeedDefaults(ctx context.Context) (bool, error) {
	empty, err := o.docs.Empty(ctx, remote.CollMetrics)
	if err != nil {
		return false, fmt.Errorf("failed to check metrics collection: %w", err)
	}
	if !empty {
		return false, nil
	}

	writes := []remote.Write{set(remote.CollAppState, remote.ConfigDocID, livesync.EncodeConfig(domain.NewAppState()))}
	if err := o.docs.Commit(ctx, writes); err != nil {
		return false, fmt.Errorf("failed to seed defaults: %w", err)
	}
	o.logger.Info().Int("writes", len(writes)).Msg("seeded default config")
	return true, nil
}
