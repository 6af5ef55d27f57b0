package constants

import "time"

const (
	SnapshotKey            = "dabbathon-state-v1"
	TempNotificationPrefix = "temp-"
	ImportedInvigilator    = "Imported"
	ImportHeaderScanRows   = 10
)

const (
	DefaultAutoPingInterval  = 15 * time.Second
	DefaultUrgentLeadMinutes = 2
	DefaultFinalistCount     = 10
	MaxLeadMinutes           = 60
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RemoteWriteTimeout = 10 * time.Second
	RemoteRetryBase    = 500 * time.Millisecond

	RemoteBreakerFailures    = 5
	RemoteBreakerOpenTimeout = 30 * time.Second

	SheetFetchInterval = 2 * time.Second
	SheetFetchBurst    = 3
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)
