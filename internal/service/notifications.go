package service

import (
	"slices"
	"strings"

	"dabbathon/internal/constants"
	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func isTemporary(id string) bool {
	return strings.HasPrefix(id, constants.TempNotificationPrefix)
}

// NotifyTeam appends a notification under a temporary id right away. The fold
// swaps in the backend id when the write is echoed.
func (o *Operations) NotifyTeam(teamID, message string) (domain.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Notification{}, domain.ErrBlankMessage
	}
	suffix, err := gonanoid.New()
	if err != nil {
		return domain.Notification{}, err
	}

	n := domain.Notification{
		ID:      constants.TempNotificationPrefix + suffix,
		TeamID:  teamID,
		Message: message,
	}
	known := false
	o.store.Mutate(func(d *domain.AppState) {
		if _, known = d.Teams[teamID]; !known {
			return
		}
		n.Timestamp = o.nowMillis()
		d.Notifications = append(d.Notifications, n)
	})
	if !known {
		return domain.Notification{}, domain.ErrUnknownTeam
	}

	if o.pusher != nil {
		o.pusher.PushAdd(remote.CollNotifications, n.ID, livesync.EncodeNotification(n))
	}
	o.logger.Debug().Str("team_id", teamID).Str("id", n.ID).Msg("notification queued")
	return n, nil
}

func (o *Operations) DeleteNotification(id string) {
	o.store.Mutate(func(d *domain.AppState) {
		d.Notifications = slices.DeleteFunc(d.Notifications, func(n domain.Notification) bool { return n.ID == id })
		delete(d.Desynced, remote.DocKey(remote.CollNotifications, id))
	})
	if !isTemporary(id) {
		o.push(del(remote.CollNotifications, id))
	}
}

// MarkNotificationRead is local to this process.
func (o *Operations) MarkNotificationRead(id string) {
	o.store.Mutate(func(d *domain.AppState) {
		if !slices.Contains(d.ReadNotifications, id) {
			d.ReadNotifications = append(d.ReadNotifications, id)
		}
	})
}
