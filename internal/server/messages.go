package server

import (
	"dabbathon/internal/domain"
	"dabbathon/internal/importer"
	"dabbathon/internal/scheduler"
)

type Empty struct{}

type StateResponse struct {
	State *domain.AppState `json:"state"`
}

type QueuedAutoPingsResponse struct {
	Pings []scheduler.QueuedPing `json:"pings"`
}

type AddTeamRequest struct {
	Name             string `json:"name"`
	SlotTime         string `json:"slotTime,omitempty"`
	Room             string `json:"room,omitempty"`
	ProblemStatement string `json:"problemStatement,omitempty"`
	Username         string `json:"username,omitempty"`
	Password         string `json:"password,omitempty"`
}

// TeamFieldRequest carries the team id plus the one field a setter changes.
type TeamFieldRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	SlotTime         string `json:"slotTime,omitempty"`
	Room             string `json:"room,omitempty"`
	ProblemStatement string `json:"problemStatement,omitempty"`
	Finalist         bool   `json:"finalist,omitempty"`
	Username         string `json:"username,omitempty"`
	Password         string `json:"password,omitempty"`
}

type SubmitFileRequest struct {
	Round  int    `json:"round"`
	TeamID string `json:"teamId"`
	URL    string `json:"url"`
}

type TeamResponse struct {
	Team domain.Team `json:"team"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type AddMetricRequest struct {
	Name  string  `json:"name"`
	Max   float64 `json:"max"`
	Round int     `json:"round,omitempty"`
}

type UpdateMetricRequest struct {
	ID    string             `json:"id"`
	Patch domain.MetricPatch `json:"patch"`
}

type MetricResponse struct {
	Metric domain.Metric `json:"metric"`
}

type AddRoomRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Password string `json:"password,omitempty"`
}

type UpdateRoomRequest struct {
	ID    string           `json:"id"`
	Patch domain.RoomPatch `json:"patch"`
}

type RoomResponse struct {
	Room domain.Room `json:"room"`
}

type SubmitScoreRequest struct {
	Round int               `json:"round"`
	Entry domain.ScoreEntry `json:"entry"`
}

type ScoreResponse struct {
	Entry domain.ScoreEntry `json:"entry"`
}

type DeleteScoreRequest struct {
	Round    int    `json:"round"`
	TeamID   string `json:"teamId"`
	MetricID string `json:"metricId"`
}

type RoundRequest struct {
	Round int `json:"round"`
}

type ExportScoresResponse struct {
	Filename string `json:"filename"`
	CSV      string `json:"csv"`
}

type ImportScoresRequest struct {
	Text string `json:"text"`
}

type ImportSheetRequest struct {
	URL string `json:"url"`
}

type ImportResponse struct {
	Result  importer.Result `json:"result"`
	Message string          `json:"message"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type NotifyTeamRequest struct {
	TeamID  string `json:"teamId"`
	Message string `json:"message"`
}

type NotificationResponse struct {
	Notification domain.Notification `json:"notification"`
}

type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type LeadMinutesMessage struct {
	Minutes int `json:"minutes"`
}

type TimerConfigRequest struct {
	TimerConfig domain.TimerConfig `json:"timerConfig"`
}

type TeamTimerRequest struct {
	RoomID string `json:"roomId"`
	TeamID string `json:"teamId"`
}

type LoginTeamRequest struct {
	TeamID   string `json:"teamId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginTeamByPasswordRequest struct {
	Password string `json:"password"`
}

type CheckPasskeyRequest struct {
	Role    string `json:"role"`
	Passkey string `json:"passkey"`
}

type LoginRoomRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

type SeedDefaultsResponse struct {
	Seeded bool `json:"seeded"`
}
