package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"dabbathon/internal/service"

	"connectrpc.com/connect"
)

// PasskeyHeader carries the admin or invigilator passkey on gated procedures.
const PasskeyHeader = "X-Dashboard-Passkey"

var errMissingPasskey = errors.New("passkey required")

type access int

const (
	accessAdmin access = iota
	accessStaff
	accessPublic
)

// procedureAccess lists the procedures open to participants and the public
// display, and those an invigilator may call. Anything unlisted is admin only.
var procedureAccess = map[string]access{
	"GetState":             accessPublic,
	"WatchState":           accessPublic,
	"LoginTeam":            accessPublic,
	"LoginTeamByPassword":  accessPublic,
	"LoginRoom":            accessPublic,
	"CheckPasskey":         accessPublic,
	"SubmitFile":           accessPublic,
	"MarkNotificationRead": accessPublic,

	"SubmitScore":    accessStaff,
	"DeleteScore":    accessStaff,
	"NotifyTeam":     accessStaff,
	"StartTeamTimer": accessStaff,
	"StopTeamTimer":  accessStaff,
	"ResetTeamTimer": accessStaff,
}

func accessFor(procedure string) access {
	if a, ok := procedureAccess[strings.TrimPrefix(procedure, DashboardPath)]; ok {
		return a
	}
	return accessAdmin
}

type authInterceptor struct {
	ops *service.Operations
}

func (a authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := a.authorize(req.Spec().Procedure, req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := a.authorize(conn.Spec().Procedure, conn.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// authorize accepts the admin passkey everywhere and the invigilator passkey on
// staff procedures.
func (a authInterceptor) authorize(procedure string, header http.Header) error {
	level := accessFor(procedure)
	if level == accessPublic {
		return nil
	}

	key := header.Get(PasskeyHeader)
	if key == "" {
		return connect.NewError(connect.CodeUnauthenticated, errMissingPasskey)
	}
	if a.ops.CheckPasskey(service.RoleAdmin, key) == nil {
		return nil
	}
	err := a.ops.CheckPasskey(service.RoleInvigilator, key)
	switch {
	case err == nil && level == accessStaff:
		return nil
	case err == nil:
		return connect.NewError(connect.CodePermissionDenied, errors.New("admin passkey required"))
	default:
		return toConnectError(err)
	}
}
