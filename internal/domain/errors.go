package domain

import "errors"

var (
	ErrBlankName          = errors.New("name must not be blank")
	ErrBlankID            = errors.New("id must not be blank")
	ErrBlankMessage       = errors.New("message must not be blank")
	ErrRoomExists         = errors.New("room already exists")
	ErrUnknownTeam        = errors.New("unknown team")
	ErrUnknownRoom        = errors.New("unknown room")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrUnknownRole        = errors.New("unknown role")
	ErrInvalidRound       = errors.New("round must be between 1 and 3")
	ErrInvalidScore       = errors.New("score must be a finite number")
	ErrInvalidURL         = errors.New("url must be absolute with scheme and host")
	ErrInvalidDuration    = errors.New("duration must be positive")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
