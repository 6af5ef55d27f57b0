package livesync

import (
	"math"
	"strconv"
	"strings"
	"time"

	"dabbathon/internal/domain"
)

// Remote documents arrive as loosely typed maps: Firestore hands back int64 and
// float64 numbers and time.Time timestamps, older clients wrote strings. The
// readers below accept all of them.

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// asMillis reads a timestamp as unix millis.
func asMillis(v any) (int64, bool) {
	if t, ok := v.(time.Time); ok {
		return t.UnixMilli(), true
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(x)
		return b, err == nil
	default:
		return false, false
	}
}

// MergeTeam applies the fields present in data over an existing team.
func MergeTeam(t domain.Team, id string, data map[string]any) domain.Team {
	t.ID = id
	if v, ok := asString(data["name"]); ok {
		t.Name = v
	}
	if v, ok := asString(data["slotTime"]); ok {
		t.SlotTime = v
	}
	if v, ok := asString(data["room"]); ok {
		t.Room = domain.NormalizeRoom(v)
	}
	if v, ok := asString(data["problemStatement"]); ok {
		t.ProblemStatement = v
	}
	if v, ok := asBool(data["finalist"]); ok {
		t.Finalist = v
	}
	if v, ok := asString(data["username"]); ok {
		t.Username = v
	}
	if v, ok := asString(data["password"]); ok {
		t.Password = v
	}
	if raw, ok := data["submissions"].(map[string]any); ok {
		subs := make(map[string]string, len(raw))
		for round, url := range raw {
			if s, ok := asString(url); ok {
				subs[round] = s
			}
		}
		t.Submissions = subs
	}
	if t.Name == "" {
		t.Name = id
	}
	return t
}

func EncodeTeam(t domain.Team) map[string]any {
	doc := map[string]any{
		"name":     t.Name,
		"finalist": t.Finalist,
	}
	putString(doc, "slotTime", t.SlotTime)
	putString(doc, "room", t.Room)
	putString(doc, "problemStatement", t.ProblemStatement)
	putString(doc, "username", t.Username)
	putString(doc, "password", t.Password)
	if len(t.Submissions) > 0 {
		subs := make(map[string]any, len(t.Submissions))
		for k, v := range t.Submissions {
			subs[k] = v
		}
		doc["submissions"] = subs
	}
	return doc
}

func MergeMetric(m domain.Metric, id string, data map[string]any) domain.Metric {
	m.ID = id
	if v, ok := asString(data["name"]); ok {
		m.Name = v
	}
	if v, ok := asFloat(data["max"]); ok {
		m.Max = domain.CoerceMax(v)
	}
	if v, ok := asInt(data["round"]); ok && domain.ValidRound(v) {
		m.Round = v
	}
	if m.Max == 0 {
		m.Max = 1
	}
	return domain.NormalizeMetric(m)
}

func EncodeMetric(m domain.Metric) map[string]any {
	m = domain.NormalizeMetric(m)
	return map[string]any{
		"name":  m.Name,
		"max":   m.Max,
		"round": m.Round,
	}
}

func MergeRoom(r domain.Room, id string, data map[string]any) domain.Room {
	r.ID = id
	if v, ok := asString(data["title"]); ok {
		r.Title = domain.NormalizeRoom(v)
	}
	if v, ok := asString(data["password"]); ok {
		r.Password = v
	}
	if v, ok := asString(data["invigilator"]); ok {
		r.Invigilator = v
	}
	if v, ok := asString(data["updatedAt"]); ok {
		r.UpdatedAt = v
	}
	return r
}

func EncodeRoom(r domain.Room) map[string]any {
	doc := map[string]any{}
	putString(doc, "title", r.Title)
	putString(doc, "password", r.Password)
	putString(doc, "invigilator", r.Invigilator)
	putString(doc, "updatedAt", r.UpdatedAt)
	return doc
}

// DecodeScore reads a score document. The composite key falls back to the
// document id "<teamId>_<metricId>" when the fields are missing.
func DecodeScore(id string, data map[string]any) (domain.ScoreEntry, bool) {
	var e domain.ScoreEntry
	e.TeamID, _ = asString(data["teamId"])
	e.MetricID, _ = asString(data["metricId"])
	if e.TeamID == "" || e.MetricID == "" {
		team, metric, ok := strings.Cut(id, "_")
		if !ok {
			return e, false
		}
		if e.TeamID == "" {
			e.TeamID = team
		}
		if e.MetricID == "" {
			e.MetricID = metric
		}
	}
	e.InvigilatorName, _ = asString(data["invigilatorName"])
	e.Score, _ = asFloat(data["score"])
	e.Notes, _ = asString(data["notes"])
	e.Timestamp, _ = asMillis(data["timestamp"])
	return e, true
}

func EncodeScore(e domain.ScoreEntry) map[string]any {
	doc := map[string]any{
		"teamId":          e.TeamID,
		"metricId":        e.MetricID,
		"invigilatorName": e.InvigilatorName,
		"score":           e.Score,
		"timestamp":       e.Timestamp,
	}
	putString(doc, "notes", e.Notes)
	return doc
}

func DecodeNotification(id string, data map[string]any) domain.Notification {
	n := domain.Notification{ID: id}
	n.TeamID, _ = asString(data["teamId"])
	n.Message, _ = asString(data["message"])
	n.Timestamp, _ = asMillis(data["timestamp"])
	return n
}

func EncodeNotification(n domain.Notification) map[string]any {
	return map[string]any{
		"teamId":    n.TeamID,
		"message":   n.Message,
		"timestamp": n.Timestamp,
	}
}

// MergeConfig applies the present config fields; absent or invalid fields keep
// their local value.
func MergeConfig(s *domain.AppState, data map[string]any) {
	if v, ok := asInt(data["activeRound"]); ok && domain.ValidRound(v) {
		s.ActiveRound = v
	}
	if v, ok := asBool(data["publicViewEnabled"]); ok {
		s.PublicViewEnabled = v
	}
	if v, ok := asBool(data["autoPingEnabled"]); ok {
		s.AutoPingEnabled = v
	}
	if v, ok := asInt(data["autoPingLeadMinutes"]); ok {
		s.AutoPingLeadMinutes = ClampLeadMinutes(v)
	}
	if tc, ok := data["timerConfig"].(map[string]any); ok {
		if v, ok := asInt(tc["sessionDurationSec"]); ok && v > 0 {
			s.TimerConfig.SessionDurationSec = v
		}
		if v, ok := asInt(tc["teamDurationSec"]); ok && v > 0 {
			s.TimerConfig.TeamDurationSec = v
		}
	}
}

func EncodeConfig(s *domain.AppState) map[string]any {
	return map[string]any{
		"activeRound":         s.ActiveRound,
		"publicViewEnabled":   s.PublicViewEnabled,
		"autoPingEnabled":     s.AutoPingEnabled,
		"autoPingLeadMinutes": s.AutoPingLeadMinutes,
		"timerConfig": map[string]any{
			"sessionDurationSec": s.TimerConfig.SessionDurationSec,
			"teamDurationSec":    s.TimerConfig.TeamDurationSec,
		},
	}
}

// ClampLeadMinutes keeps a reminder lead within [1,60]; zero or less means the default.
func ClampLeadMinutes(v int) int {
	switch {
	case v <= 0:
		return domain.DefaultLeadMinutes
	case v > 60:
		return 60
	default:
		return v
	}
}

func putString(doc map[string]any, key, v string) {
	if v != "" {
		doc[key] = v
	}
}
