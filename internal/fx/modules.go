package fx

import (
	"context"

	"dabbathon/internal/api"
	"dabbathon/internal/config"
	"dabbathon/internal/constants"
	"dabbathon/internal/database"
	"dabbathon/internal/importer"
	"dabbathon/internal/livesync"
	"dabbathon/internal/logger"
	"dabbathon/internal/remote"
	"dabbathon/internal/repository"
	"dabbathon/internal/scheduler"
	"dabbathon/internal/server"
	"dabbathon/internal/service"
	"dabbathon/internal/store"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideDocumentStore(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) remote.DocumentStore {
	var docs remote.DocumentStore
	if cfg.RemoteBackend == config.BackendMemory {
		logger.Warn().Msg("using in-memory remote backend; state is not shared between processes")
		docs = remote.NewMemoryStore()
	} else {
		docs = remote.NewFirestoreStore(cfg.FirebaseProjectID, cfg.FirebaseCredentialsJSON, logger)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return docs.Close() },
	})
	return docs
}

func ProvidePusher(docs remote.DocumentStore, cfg *config.Config, logger zerolog.Logger) *remote.Pusher {
	return remote.NewPusher(docs, cfg.RemoteWriteRetries, constants.RemoteRetryBase, logger)
}

func ProvideStore(snapshots *repository.SnapshotRepository, logger zerolog.Logger) *store.Store {
	return store.New(snapshots, logger)
}

func ProvideAdapter(docs remote.DocumentStore, pusher *remote.Pusher, st *store.Store, snapshots *repository.SnapshotRepository, logger zerolog.Logger) *livesync.Adapter {
	return livesync.NewAdapter(docs, pusher, st, snapshots, logger)
}

func ProvideImporter(ops *service.Operations, fetcher api.CSVFetcher, logger zerolog.Logger) *importer.Importer {
	return importer.New(ops, fetcher, logger)
}

func ProvideScheduler(st *store.Store, ops *service.Operations, markers *repository.MarkerRepository, cfg *config.Config, logger zerolog.Logger) *scheduler.Scheduler {
	return scheduler.New(st, ops, markers, cfg, logger)
}

// AttachScheduler starts the reminder loop once live sync is attached.
func AttachScheduler(adapter *livesync.Adapter, sched *scheduler.Scheduler) {
	adapter.AfterAttach(sched)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	// local cache
	fx.Provide(repository.NewSnapshotRepository),
	fx.Provide(repository.NewMarkerRepository),
	// remote
	fx.Provide(ProvideDocumentStore),
	fx.Provide(ProvidePusher),
	// state
	fx.Provide(ProvideStore),
	fx.Provide(ProvideAdapter),
	// sheet client
	fx.Provide(api.NewFetcher),
	// svc
	fx.Provide(service.NewOperations),
	fx.Provide(ProvideImporter),
	fx.Provide(ProvideScheduler),
	fx.Invoke(AttachScheduler),
	// server
	fx.Provide(server.NewDashboardServer),
)
