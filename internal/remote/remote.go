package remote

import (
	"context"
	"fmt"
)

// Collection names in the remote document store.
const (
	CollTeams         = "teams"
	CollMetrics       = "metrics"
	CollRooms         = "rooms"
	CollNotifications = "notifications"
	CollAppState      = "app_state"
	ConfigDocID       = "config"
)

// ScoreCollection maps a round to its score collection.
func ScoreCollection(round int) string {
	switch round {
	case 2:
		return "scores_round2"
	case 3:
		return "scores_round3"
	default:
		return "scores"
	}
}

// ScoreRound is the inverse of ScoreCollection; it returns 0 for any other collection.
func ScoreRound(collection string) int {
	for r := 1; r <= 3; r++ {
		if ScoreCollection(r) == collection {
			return r
		}
	}
	return 0
}

func ScoreDocID(teamID, metricID string) string {
	return teamID + "_" + metricID
}

// DocKey identifies a document across collections, e.g. "teams/T1".
func DocKey(collection, id string) string {
	return collection + "/" + id
}

type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

type Change struct {
	Kind ChangeKind
	ID   string
	Data map[string]any
}

type WriteOp int

const (
	OpSet WriteOp = iota
	OpMerge
	OpDelete
)

type Write struct {
	Op         WriteOp
	Collection string
	ID         string
	Data       map[string]any
}

// DocumentStore is the remote backend. Listen and ListenDoc block, delivering one
// callback per remote snapshot, until ctx is cancelled.
type DocumentStore interface {
	Authenticate(ctx context.Context) error
	Listen(ctx context.Context, collection string, fn func([]Change)) error
	ListenDoc(ctx context.Context, collection, id string, fn func(Change)) error
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Commit(ctx context.Context, writes []Write) error
	Empty(ctx context.Context, collection string) (bool, error)
	Close() error
}
