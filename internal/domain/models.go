package domain

const (
	MinRound = 1
	MaxRound = 3
)

type Team struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	SlotTime         string            `json:"slotTime,omitempty"`
	Room             string            `json:"room,omitempty"`
	ProblemStatement string            `json:"problemStatement,omitempty"`
	Finalist         bool              `json:"finalist,omitempty"`
	Username         string            `json:"username,omitempty"`
	Password         string            `json:"password,omitempty"`
	Submissions      map[string]string `json:"submissions,omitempty"` // round -> url
}

type Metric struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Max   int    `json:"max"`
	Round int    `json:"round,omitempty"`
}

type Room struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Password    string `json:"password,omitempty"`
	Invigilator string `json:"invigilator,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// RoomPatch carries the optional fields of an UpdateRoom call; nil fields are left alone.
type RoomPatch struct {
	Title       *string `json:"title,omitempty"`
	Password    *string `json:"password,omitempty"`
	Invigilator *string `json:"invigilator,omitempty"`
}

type MetricPatch struct {
	Name  *string `json:"name,omitempty"`
	Max   *int    `json:"max,omitempty"`
	Round *int    `json:"round,omitempty"`
}

type ScoreEntry struct {
	TeamID          string  `json:"teamId"`
	InvigilatorName string  `json:"invigilatorName"`
	MetricID        string  `json:"metricId"`
	Score           float64 `json:"score"`
	Notes           string  `json:"notes,omitempty"`
	Timestamp       int64   `json:"timestamp"` // unix millis
	Pending         bool    `json:"pending,omitempty"`
}

type Notification struct {
	ID        string `json:"id"`
	TeamID    string `json:"teamId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type TimerConfig struct {
	SessionDurationSec int `json:"sessionDurationSec"`
	TeamDurationSec    int `json:"teamDurationSec"`
}

type Timer struct {
	StartedAt int64 `json:"startedAt,omitempty"`
	PausedAt  int64 `json:"pausedAt,omitempty"`
	IsRunning bool  `json:"isRunning"`
}

type TimerState struct {
	Session Timer            `json:"session"`
	Teams   map[string]Timer `json:"teams"` // key: room:team
}

// AppState is the root aggregate held by the store. A committed value is never
// modified in place; mutations work on a Clone.
type AppState struct {
	Metrics             []Metric             `json:"metrics"`
	Rooms               map[string]Room      `json:"rooms"`
	Teams               map[string]Team      `json:"teams"`
	Scores              map[int][]ScoreEntry `json:"scores"`
	ScoreLog            map[int][]ScoreEntry `json:"scoreLog"`
	Notifications       []Notification       `json:"notifications"`
	ReadNotifications   []string             `json:"readNotifications"`
	PublicViewEnabled   bool                 `json:"publicViewEnabled"`
	ActiveRound         int                  `json:"activeRound"`
	AutoPingEnabled     bool                 `json:"autoPingEnabled"`
	AutoPingLeadMinutes int                  `json:"autoPingLeadMinutes"`
	TimerConfig         TimerConfig          `json:"timerConfig"`
	TimerState          TimerState           `json:"timerState"`
	Desynced            map[string]string    `json:"desynced,omitempty"`
}

const (
	DefaultLeadMinutes        = 5
	DefaultSessionDurationSec = 3600
	DefaultTeamDurationSec    = 600
)

func NewAppState() *AppState {
	return &AppState{
		Metrics:             []Metric{},
		Rooms:               map[string]Room{},
		Teams:               map[string]Team{},
		Scores:              map[int][]ScoreEntry{},
		ScoreLog:            map[int][]ScoreEntry{},
		Notifications:       []Notification{},
		ReadNotifications:   []string{},
		ActiveRound:         1,
		AutoPingEnabled:     true,
		AutoPingLeadMinutes: DefaultLeadMinutes,
		TimerConfig: TimerConfig{
			SessionDurationSec: DefaultSessionDurationSec,
			TeamDurationSec:    DefaultTeamDurationSec,
		},
		TimerState: TimerState{Teams: map[string]Timer{}},
		Desynced:   map[string]string{},
	}
}

func ValidRound(round int) bool {
	return round >= MinRound && round <= MaxRound
}

func TimerKey(roomID, teamID string) string {
	return roomID + ":" + teamID
}

// Elapsed reports the running time in millis at now (unix millis).
func (t Timer) Elapsed(now int64) int64 {
	if t.StartedAt == 0 {
		return 0
	}
	if t.IsRunning {
		return now - t.StartedAt
	}
	if t.PausedAt == 0 {
		return 0
	}
	return t.PausedAt - t.StartedAt
}
