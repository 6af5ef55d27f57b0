package server

import (
	"context"
	"errors"

	"dabbathon/internal/domain"
	"dabbathon/internal/remote"

	"connectrpc.com/connect"
)

func toConnectError(err error) error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return err
	}
	return connect.NewError(codeOf(err), err)
}

func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, domain.ErrUnknownTeam),
		errors.Is(err, domain.ErrUnknownRoom),
		errors.Is(err, domain.ErrUnknownMetric):
		return connect.CodeNotFound
	case errors.Is(err, domain.ErrInvalidCredentials):
		return connect.CodeUnauthenticated
	case errors.Is(err, domain.ErrRoomExists):
		return connect.CodeAlreadyExists
	case errors.Is(err, domain.ErrBlankName),
		errors.Is(err, domain.ErrBlankID),
		errors.Is(err, domain.ErrBlankMessage),
		errors.Is(err, domain.ErrUnknownRole),
		errors.Is(err, domain.ErrInvalidRound),
		errors.Is(err, domain.ErrInvalidScore),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrInvalidDuration):
		return connect.CodeInvalidArgument
	case errors.Is(err, remote.ErrNotAuthenticated):
		return connect.CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	default:
		return connect.CodeInternal
	}
}
