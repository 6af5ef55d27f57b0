package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dabbathon/internal/domain"
	"dabbathon/internal/importer"
	"dabbathon/internal/scheduler"
	"dabbathon/internal/service"
	"dabbathon/internal/store"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const DashboardPath = "/dashboard.v1.Dashboard/"

type DashboardServer struct {
	ops       *service.Operations
	importer  *importer.Importer
	scheduler *scheduler.Scheduler
	store     *store.Store
	logger    zerolog.Logger
}

func NewDashboardServer(ops *service.Operations, im *importer.Importer, sched *scheduler.Scheduler, st *store.Store, logger zerolog.Logger) *DashboardServer {
	return &DashboardServer{
		ops:       ops,
		importer:  im,
		scheduler: sched,
		store:     st,
		logger:    logger.With().Str("component", "dashboard_server").Logger(),
	}
}

func (s *DashboardServer) options() []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(s.logInterceptor(), authInterceptor{ops: s.ops}),
	}
}

func (s *DashboardServer) logInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)
			ev := zerolog.Ctx(ctx).Debug()
			if err != nil {
				ev = zerolog.Ctx(ctx).Warn().Err(err).Str("code", connect.CodeOf(err).String())
			}
			ev.Str("procedure", req.Spec().Procedure).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("rpc handled")
			return res, err
		}
	}
}

func unary[Req, Res any](mux *http.ServeMux, name string, fn func(context.Context, *Req) (*Res, error), opts ...connect.HandlerOption) {
	procedure := DashboardPath + name
	mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	))
}

// command adapts an operation that only reports an error.
func command[Req any](fn func(*Req) error) func(context.Context, *Req) (*Empty, error) {
	return func(_ context.Context, req *Req) (*Empty, error) {
		if err := fn(req); err != nil {
			return nil, err
		}
		return &Empty{}, nil
	}
}

// Handler returns every dashboard procedure mounted under DashboardPath.
func (s *DashboardServer) Handler() (string, http.Handler) {
	mux := http.NewServeMux()
	opts := s.options()

	unary(mux, "GetState", s.getState, opts...)
	unary(mux, "QueuedAutoPings", s.queuedAutoPings, opts...)

	unary(mux, "AddTeam", s.addTeam, opts...)
	unary(mux, "RenameTeam", command(func(r *TeamFieldRequest) error { return s.ops.RenameTeam(r.ID, r.Name) }), opts...)
	unary(mux, "SetTeamSlot", command(func(r *TeamFieldRequest) error { return s.ops.SetTeamSlot(r.ID, r.SlotTime) }), opts...)
	unary(mux, "SetTeamRoom", command(func(r *TeamFieldRequest) error { return s.ops.SetTeamRoom(r.ID, r.Room) }), opts...)
	unary(mux, "SetTeamProblem", command(func(r *TeamFieldRequest) error { return s.ops.SetTeamProblem(r.ID, r.ProblemStatement) }), opts...)
	unary(mux, "SetTeamFinalist", command(func(r *TeamFieldRequest) error { return s.ops.SetTeamFinalist(r.ID, r.Finalist) }), opts...)
	unary(mux, "SetTeamCredential", command(func(r *TeamFieldRequest) error {
		return s.ops.SetTeamCredential(r.ID, r.Username, r.Password)
	}), opts...)
	unary(mux, "SubmitFile", command(func(r *SubmitFileRequest) error { return s.ops.SubmitFile(r.Round, r.TeamID, r.URL) }), opts...)
	unary(mux, "RemoveTeam", command(func(r *IDRequest) error { return s.ops.RemoveTeam(r.ID) }), opts...)

	unary(mux, "AddMetric", s.addMetric, opts...)
	unary(mux, "UpdateMetric", command(func(r *UpdateMetricRequest) error { return s.ops.UpdateMetric(r.ID, r.Patch) }), opts...)
	unary(mux, "RemoveMetric", command(func(r *IDRequest) error { return s.ops.RemoveMetric(r.ID) }), opts...)

	unary(mux, "AddRoom", s.addRoom, opts...)
	unary(mux, "UpdateRoom", s.updateRoom, opts...)
	unary(mux, "RemoveRoom", command(func(r *IDRequest) error { return s.ops.RemoveRoom(r.ID) }), opts...)

	unary(mux, "SubmitScore", s.submitScore, opts...)
	unary(mux, "DeleteScore", command(func(r *DeleteScoreRequest) error {
		return s.ops.DeleteScore(r.Round, r.TeamID, r.MetricID)
	}), opts...)
	unary(mux, "ExportScores", s.exportScores, opts...)
	unary(mux, "ImportScores", s.importScores, opts...)
	unary(mux, "ImportSheet", s.importSheet, opts...)
	unary(mux, "AutoSelectFinalists", s.autoSelectFinalists, opts...)

	unary(mux, "NotifyTeam", s.notifyTeam, opts...)
	unary(mux, "DeleteNotification", command(func(r *IDRequest) error { s.ops.DeleteNotification(r.ID); return nil }), opts...)
	unary(mux, "MarkNotificationRead", command(func(r *IDRequest) error { s.ops.MarkNotificationRead(r.ID); return nil }), opts...)

	unary(mux, "SetActiveRound", command(func(r *RoundRequest) error { return s.ops.SetActiveRound(r.Round) }), opts...)
	unary(mux, "SetPublicView", command(func(r *EnabledRequest) error { s.ops.SetPublicView(r.Enabled); return nil }), opts...)
	unary(mux, "SetAutoPingEnabled", command(func(r *EnabledRequest) error { s.ops.SetAutoPingEnabled(r.Enabled); return nil }), opts...)
	unary(mux, "SetAutoPingLeadMinutes", s.setAutoPingLeadMinutes, opts...)
	unary(mux, "SetTimerConfig", command(func(r *TimerConfigRequest) error { return s.ops.SetTimerConfig(r.TimerConfig) }), opts...)

	unary(mux, "StartSession", command(func(*Empty) error { s.ops.StartSession(); return nil }), opts...)
	unary(mux, "StopSession", command(func(*Empty) error { s.ops.StopSession(); return nil }), opts...)
	unary(mux, "ResetSession", command(func(*Empty) error { s.ops.ResetSession(); return nil }), opts...)
	unary(mux, "StartTeamTimer", command(func(r *TeamTimerRequest) error { s.ops.StartTeamTimer(r.RoomID, r.TeamID); return nil }), opts...)
	unary(mux, "StopTeamTimer", command(func(r *TeamTimerRequest) error { s.ops.StopTeamTimer(r.RoomID, r.TeamID); return nil }), opts...)
	unary(mux, "ResetTeamTimer", command(func(r *TeamTimerRequest) error { s.ops.ResetTeamTimer(r.RoomID, r.TeamID); return nil }), opts...)

	unary(mux, "LoginTeam", s.loginTeam, opts...)
	unary(mux, "LoginTeamByPassword", s.loginTeamByPassword, opts...)
	unary(mux, "CheckPasskey", command(func(r *CheckPasskeyRequest) error { return s.ops.CheckPasskey(r.Role, r.Passkey) }), opts...)
	unary(mux, "LoginRoom", s.loginRoom, opts...)

	unary(mux, "RetryDesynced", s.retryDesynced, opts...)
	unary(mux, "SeedDefaults", s.seedDefaults, opts...)

	watch := DashboardPath + "WatchState"
	mux.Handle(watch, connect.NewServerStreamHandler(watch, s.WatchState, opts...))

	return DashboardPath, mux
}

func (s *DashboardServer) getState(_ context.Context, _ *Empty) (*StateResponse, error) {
	return &StateResponse{State: redacted(s.store.Get())}, nil
}

func (s *DashboardServer) queuedAutoPings(_ context.Context, _ *Empty) (*QueuedAutoPingsResponse, error) {
	return &QueuedAutoPingsResponse{Pings: s.scheduler.Queued()}, nil
}

func (s *DashboardServer) addTeam(_ context.Context, r *AddTeamRequest) (*TeamResponse, error) {
	team := s.ops.AddTeam(r.Name, service.TeamOptions{
		SlotTime:         r.SlotTime,
		Room:             r.Room,
		ProblemStatement: r.ProblemStatement,
		Username:         r.Username,
		Password:         r.Password,
	})
	return &TeamResponse{Team: team}, nil
}

func (s *DashboardServer) addMetric(_ context.Context, r *AddMetricRequest) (*MetricResponse, error) {
	m, err := s.ops.AddMetric(r.Name, r.Max, r.Round)
	if err != nil {
		return nil, err
	}
	return &MetricResponse{Metric: m}, nil
}

func (s *DashboardServer) addRoom(_ context.Context, r *AddRoomRequest) (*RoomResponse, error) {
	room, err := s.ops.AddRoom(r.ID, r.Title, r.Password)
	if err != nil {
		return nil, err
	}
	return &RoomResponse{Room: room}, nil
}

func (s *DashboardServer) updateRoom(_ context.Context, r *UpdateRoomRequest) (*RoomResponse, error) {
	room, err := s.ops.UpdateRoom(r.ID, r.Patch)
	if err != nil {
		return nil, err
	}
	return &RoomResponse{Room: room}, nil
}

func (s *DashboardServer) submitScore(_ context.Context, r *SubmitScoreRequest) (*ScoreResponse, error) {
	e, err := s.ops.SubmitScore(r.Round, r.Entry)
	if err != nil {
		return nil, err
	}
	return &ScoreResponse{Entry: e}, nil
}

func (s *DashboardServer) exportScores(_ context.Context, r *RoundRequest) (*ExportScoresResponse, error) {
	text, err := s.ops.ExportScoresCSV(r.Round)
	if err != nil {
		return nil, err
	}
	return &ExportScoresResponse{
		Filename: fmt.Sprintf("scores_round%d.csv", r.Round),
		CSV:      text,
	}, nil
}

func (s *DashboardServer) importScores(ctx context.Context, r *ImportScoresRequest) (*ImportResponse, error) {
	res, err := s.importer.ImportScores(ctx, r.Text)
	if err != nil {
		return nil, err
	}
	return &ImportResponse{Result: res, Message: res.Message()}, nil
}

func (s *DashboardServer) importSheet(ctx context.Context, r *ImportSheetRequest) (*ImportResponse, error) {
	res, err := s.importer.ImportSheet(ctx, r.URL)
	if err != nil {
		return nil, err
	}
	return &ImportResponse{Result: res, Message: res.Message()}, nil
}

func (s *DashboardServer) autoSelectFinalists(_ context.Context, _ *Empty) (*CountResponse, error) {
	return &CountResponse{Count: s.ops.AutoSelectFinalists()}, nil
}

func (s *DashboardServer) notifyTeam(_ context.Context, r *NotifyTeamRequest) (*NotificationResponse, error) {
	n, err := s.ops.NotifyTeam(r.TeamID, r.Message)
	if err != nil {
		return nil, err
	}
	return &NotificationResponse{Notification: n}, nil
}

func (s *DashboardServer) setAutoPingLeadMinutes(_ context.Context, r *LeadMinutesMessage) (*LeadMinutesMessage, error) {
	return &LeadMinutesMessage{Minutes: s.ops.SetAutoPingLeadMinutes(r.Minutes)}, nil
}

func (s *DashboardServer) loginTeam(_ context.Context, r *LoginTeamRequest) (*TeamResponse, error) {
	t, err := s.ops.LoginTeam(r.TeamID, r.Username, r.Password)
	if err != nil {
		return nil, err
	}
	return &TeamResponse{Team: withoutPassword(t)}, nil
}

func (s *DashboardServer) loginTeamByPassword(_ context.Context, r *LoginTeamByPasswordRequest) (*TeamResponse, error) {
	t, err := s.ops.LoginTeamByPassword(r.Password)
	if err != nil {
		return nil, err
	}
	return &TeamResponse{Team: withoutPassword(t)}, nil
}

func (s *DashboardServer) loginRoom(_ context.Context, r *LoginRoomRequest) (*RoomResponse, error) {
	room, err := s.ops.LoginRoom(r.RoomID, r.Password)
	if err != nil {
		return nil, err
	}
	room.Password = ""
	return &RoomResponse{Room: room}, nil
}

func (s *DashboardServer) retryDesynced(_ context.Context, _ *Empty) (*CountResponse, error) {
	return &CountResponse{Count: s.ops.RetryDesynced()}, nil
}

func (s *DashboardServer) seedDefaults(ctx context.Context, _ *Empty) (*SeedDefaultsResponse, error) {
	seeded, err := s.ops.SeedDefaults(ctx)
	if err != nil {
		return nil, err
	}
	return &SeedDefaultsResponse{Seeded: seeded}, nil
}

func withoutPassword(t domain.Team) domain.Team {
	t.Password = ""
	return t
}

// redacted returns a copy of state with team and room passwords cleared.
func redacted(state *domain.AppState) *domain.AppState {
	out := state.Clone()
	for id, t := range out.Teams {
		out.Teams[id] = withoutPassword(t)
	}
	for id, r := range out.Rooms {
		r.Password = ""
		out.Rooms[id] = r
	}
	return out
}

// WatchState streams the current state, then every committed state. A slow
// client skips intermediate states and always receives the latest one.
func (s *DashboardServer) WatchState(ctx context.Context, _ *connect.Request[Empty], stream *connect.ServerStream[StateResponse]) error {
	updates := make(chan *domain.AppState, 1)
	unsubscribe := s.store.Subscribe(func(state *domain.AppState) {
		for {
			select {
			case updates <- state:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := stream.Send(&StateResponse{State: redacted(s.store.Get())}); err != nil {
		return err
	}
	s.logger.Debug().Msg("state watcher attached")

	for {
		select {
		case <-ctx.Done():
			return nil
		case state := <-updates:
			if err := stream.Send(&StateResponse{State: redacted(state)}); err != nil {
				return err
			}
		}
	}
}
