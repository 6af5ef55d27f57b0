package livesync

import (
	"slices"
	"strings"

	"dabbathon/internal/constants"
	"dabbathon/internal/domain"
	"dabbathon/internal/remote"
)

// applyChanges folds one remote batch into a draft. An echo for a document
// confirms it, so its desync mark is dropped.
func applyChanges(d *domain.AppState, collection string, changes []remote.Change) {
	round := remote.ScoreRound(collection)
	for _, c := range changes {
		delete(d.Desynced, remote.DocKey(collection, c.ID))

		switch {
		case collection == remote.CollTeams:
			foldTeam(d, c)
		case collection == remote.CollRooms:
			foldRoom(d, c)
		case collection == remote.CollMetrics:
			foldMetric(d, c)
		case collection == remote.CollNotifications:
			foldNotification(d, c)
		case collection == remote.CollAppState:
			if c.ID == remote.ConfigDocID && c.Kind != remote.Removed {
				MergeConfig(d, c.Data)
			}
		case round > 0:
			foldScore(d, round, c)
		}
	}
}

func foldTeam(d *domain.AppState, c remote.Change) {
	if c.Kind == remote.Removed {
		delete(d.Teams, c.ID)
		return
	}
	d.Teams[c.ID] = MergeTeam(d.Teams[c.ID], c.ID, c.Data)
}

func foldRoom(d *domain.AppState, c remote.Change) {
	if c.Kind == remote.Removed {
		delete(d.Rooms, c.ID)
		return
	}
	d.Rooms[c.ID] = MergeRoom(d.Rooms[c.ID], c.ID, c.Data)
}

func foldMetric(d *domain.AppState, c remote.Change) {
	i := d.MetricIndex(c.ID)
	if c.Kind == remote.Removed {
		if i >= 0 {
			d.Metrics = slices.Delete(d.Metrics, i, i+1)
		}
		return
	}
	if i >= 0 {
		d.Metrics[i] = MergeMetric(d.Metrics[i], c.ID, c.Data)
		return
	}
	d.Metrics = append(d.Metrics, MergeMetric(domain.Metric{}, c.ID, c.Data))
}

func foldScore(d *domain.AppState, round int, c remote.Change) {
	entry, ok := DecodeScore(c.ID, c.Data)
	if !ok {
		return
	}
	if c.Kind == remote.Removed {
		d.RemoveScore(round, entry.TeamID, entry.MetricID)
		return
	}
	d.UpsertScore(round, entry)
}

func foldNotification(d *domain.AppState, c remote.Change) {
	byID := func(n domain.Notification) bool { return n.ID == c.ID }

	switch c.Kind {
	case remote.Removed:
		d.Notifications = slices.DeleteFunc(d.Notifications, byID)
		return
	case remote.Modified:
		n := DecodeNotification(c.ID, c.Data)
		if i := slices.IndexFunc(d.Notifications, byID); i >= 0 {
			d.Notifications[i] = n
			return
		}
		d.Notifications = append(d.Notifications, n)
		return
	}

	if slices.ContainsFunc(d.Notifications, byID) {
		return
	}
	n := DecodeNotification(c.ID, c.Data)
	// the optimistic copy carries a temporary id until the backend assigns one
	if i := slices.IndexFunc(d.Notifications, func(o domain.Notification) bool {
		return strings.HasPrefix(o.ID, constants.TempNotificationPrefix) &&
			o.TeamID == n.TeamID && o.Message == n.Message && o.Timestamp == n.Timestamp
	}); i >= 0 {
		delete(d.Desynced, remote.DocKey(remote.CollNotifications, d.Notifications[i].ID))
		d.Notifications[i] = n
		return
	}
	d.Notifications = append(d.Notifications, n)
}
