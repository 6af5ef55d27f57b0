package service

import (
	"strings"
	"time"

	"dabbathon/internal/domain"
	"dabbathon/internal/livesync"
	"dabbathon/internal/remote"
)

func (o *Operations) roomTimestamp() string {
	return o.now().UTC().Format(time.RFC3339)
}

// AddRoom creates a room under a caller-chosen id, which must be unused.
func (o *Operations) AddRoom(id, title, password string) (domain.Room, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Room{}, domain.ErrBlankID
	}

	room := domain.Room{
		ID:        id,
		Title:     domain.NormalizeRoom(title),
		Password:  password,
		UpdatedAt: o.roomTimestamp(),
	}
	exists := false
	o.store.Mutate(func(d *domain.AppState) {
		if _, exists = d.Rooms[id]; exists {
			return
		}
		d.Rooms[id] = room
	})
	if exists {
		return domain.Room{}, domain.ErrRoomExists
	}
	o.push(set(remote.CollRooms, id, livesync.EncodeRoom(room)))
	o.logger.Info().Str("room_id", id).Str("title", room.Title).Msg("room added")
	return room, nil
}

// UpdateRoom patches a room, creating it when the id is new.
func (o *Operations) UpdateRoom(id string, patch domain.RoomPatch) (domain.Room, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Room{}, domain.ErrBlankID
	}

	var room domain.Room
	o.store.Mutate(func(d *domain.AppState) {
		room = d.Rooms[id]
		room.ID = id
		if patch.Title != nil {
			room.Title = domain.NormalizeRoom(*patch.Title)
		}
		if patch.Password != nil {
			room.Password = *patch.Password
		}
		if patch.Invigilator != nil {
			room.Invigilator = *patch.Invigilator
		}
		room.UpdatedAt = o.roomTimestamp()
		d.Rooms[id] = room
	})
	o.push(merge(remote.CollRooms, id, livesync.EncodeRoom(room)))
	return room, nil
}

func (o *Operations) RemoveRoom(id string) error {
	found := false
	o.store.Mutate(func(d *domain.AppState) {
		if _, found = d.Rooms[id]; found {
			delete(d.Rooms, id)
		}
	})
	if !found {
		return domain.ErrUnknownRoom
	}
	o.push(del(remote.CollRooms, id))
	return nil
}
