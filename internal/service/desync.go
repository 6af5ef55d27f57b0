package service

import (
	"strings"

	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"
)

// RetryDesynced re-pushes the current local value of every document whose
// earlier write was abandoned. Documents that no longer exist locally are
// deleted upstream. It returns the number of documents re-sent.
func (o *Operations) RetryDesynced() int {
	s := o.store.Get()
	if len(s.Desynced) == 0 || o.pusher == nil {
		return 0
	}

	sent := 0
	for key := range s.Desynced {
		collection, id, ok := strings.Cut(key, "/")
		if !ok {
			continue
		}
		if collection == remote.CollNotifications && isTemporary(id) {
			if n, ok := findNotification(s, id); ok {
				o.pusher.PushAdd(remote.CollNotifications, id, livesync.EncodeNotification(n))
				sent++
			}
			continue
		}
		if w, ok := currentWrite(s, collection, id); ok {
			o.pusher.Push(w)
			sent++
		}
	}
	o.logger.Info().Int("documents", sent).Msg("retrying desynced documents")
	return sent
}

func findNotification(s *domain.AppState, id string) (domain.Notification, bool) {
	for _, n := range s.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Notification{}, false
}

// currentWrite builds the write that brings the remote document in line with
// local state.
func currentWrite(s *domain.AppState, collection, id string) (remote.Write, bool) {
	switch collection {
	case remote.CollTeams:
		if t, ok := s.Teams[id]; ok {
			return set(collection, id, livesync.EncodeTeam(t)), true
		}
	case remote.CollRooms:
		if r, ok := s.Rooms[id]; ok {
			return set(collection, id, livesync.EncodeRoom(r)), true
		}
	case remote.CollMetrics:
		if i := s.MetricIndex(id); i >= 0 {
			return set(collection, id, livesync.EncodeMetric(s.Metrics[i])), true
		}
	case remote.CollNotifications:
		if n, ok := findNotification(s, id); ok {
			return set(collection, id, livesync.EncodeNotification(n)), true
		}
	case remote.CollAppState:
		return merge(collection, id, livesync.EncodeConfig(s)), true
	default:
		round := remote.ScoreRound(collection)
		if round == 0 {
			return remote.Write{}, false
		}
		teamID, metricID, ok := strings.Cut(id, "_")
		if !ok {
			return remote.Write{}, false
		}
		if e, ok := s.LatestScore(round, teamID, metricID); ok {
			return set(collection, id, livesync.EncodeScore(e)), true
		}
	}
	return del(collection, id), true
}
