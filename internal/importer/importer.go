package importer

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"dabbathon/internal/constants"
	"dabbathon/internal/domain"
	"dabbathon/internal/metrics"

	"github.com/rs/zerolog"
)

// Target is the part of the operations layer an import writes through.
type Target interface {
	State() *domain.AppState
	CommitScores(ctx context.Context, staged map[int][]domain.ScoreEntry) error
}

// Fetcher downloads a shared spreadsheet as CSV text.
type Fetcher interface {
	FetchCSV(ctx context.Context, sheetURL string) (string, error)
}

type Importer struct {
	target  Target
	fetcher Fetcher
	now     func() time.Time
	logger  zerolog.Logger
}

func New(target Target, fetcher Fetcher, logger zerolog.Logger) *Importer {
	return &Importer{
		target:  target,
		fetcher: fetcher,
		now:     time.Now,
		logger:  logger.With().Str("component", "importer").Logger(),
	}
}

func (im *Importer) SetClock(now func() time.Time) {
	im.now = now
}

type roundMarker struct {
	key   string
	round int
}

var roundMarkers = []roundMarker{
	{"round 1", 1},
	{"round 2", 2},
	{"round 3", 3},
}

func isRoundMarker(v string) bool {
	return slices.ContainsFunc(roundMarkers, func(m roundMarker) bool { return m.key == v })
}

type metricColumn struct {
	col  int
	name string
}

type section struct {
	round       int
	teamNameCol int
	columns     []metricColumn
}

// ImportSheet fetches a spreadsheet and imports it like ImportScores.
func (im *Importer) ImportSheet(ctx context.Context, sheetURL string) (Result, error) {
	if im.fetcher == nil {
		return Result{}, fmt.Errorf("sheet import is not configured")
	}
	text, err := im.fetcher.FetchCSV(ctx, sheetURL)
	if err != nil {
		metrics.ScoreImports.WithLabelValues("fetch_failed").Inc()
		return Result{}, fmt.Errorf("failed to fetch sheet: %w", err)
	}
	return im.ImportScores(ctx, text)
}

// ImportScores maps a score sheet onto the stored teams and metrics and commits
// every staged score in one batch. Detection problems are reported in the
// Result; the error is only set when the commit itself fails.
func (im *Importer) ImportScores(ctx context.Context, text string) (Result, error) {
	res, staged := im.stage(text)
	if res.Outcome == OutcomeImported && res.ScoresStaged > 0 {
		if err := im.target.CommitScores(ctx, staged); err != nil {
			res = Result{Outcome: OutcomeCommitFailed, Error: err.Error(), Sections: res.Sections}
			metrics.ScoreImports.WithLabelValues(res.Outcome.String()).Inc()
			im.logger.Error().Err(err).Msg("score import commit failed")
			return res, fmt.Errorf("failed to commit imported scores: %w", err)
		}
	}
	res.Success = res.Outcome == OutcomeImported

	metrics.ScoreImports.WithLabelValues(res.Outcome.String()).Inc()
	im.logger.Info().
		Str("outcome", res.Outcome.String()).
		Int("team_rows", res.TeamRows).
		Int("scores", res.ScoresStaged).
		Strs("unmatched_columns", res.UnmatchedColumns()).
		Msg("score import finished")
	return res, nil
}

func (im *Importer) stage(text string) (Result, map[int][]domain.ScoreEntry) {
	rows := parseRows(text)
	if len(rows) < 3 {
		return Result{Outcome: OutcomeEmpty}, nil
	}

	headerIdx := findHeader(rows)
	if headerIdx < 0 {
		return Result{Outcome: OutcomeNoHeader}, nil
	}

	header := make([]string, len(rows[headerIdx]))
	lower := make([]string, len(header))
	for i, c := range rows[headerIdx] {
		header[i] = unquote(c)
		lower[i] = strings.ToLower(header[i])
	}

	sections := detectSections(header, lower)
	if len(sections) == 0 {
		return Result{Outcome: OutcomeNoSections, Header: header}, nil
	}

	state := im.target.State()
	teams := state.SortedTeams()
	ts := im.now().UnixMilli()

	res := Result{Header: header}
	staged := map[int][]domain.ScoreEntry{}
	unmatchedRows := map[string]bool{}

	for _, sec := range sections {
		report := SectionReport{Round: sec.round}
		mapped := mapColumns(sec, state.MetricsForRound(sec.round), &report)
		res.Sections = append(res.Sections, report)
		if len(mapped) == 0 {
			continue
		}

		for _, row := range rows[headerIdx+1:] {
			name := cell(row, sec.teamNameCol)
			if name == "" {
				continue
			}
			res.RowsProcessed++

			team, ok := findTeam(teams, name)
			if !ok {
				if !unmatchedRows[name] {
					unmatchedRows[name] = true
					res.UnmatchedRows = append(res.UnmatchedRows, name)
				}
				continue
			}

			for _, mc := range mapped {
				v, ok := parseScore(cell(row, mc.col))
				if !ok {
					continue
				}
				staged[sec.round] = append(staged[sec.round], domain.ScoreEntry{
					TeamID:          team.ID,
					MetricID:        mc.metricID,
					InvigilatorName: constants.ImportedInvigilator,
					Score:           v,
					Timestamp:       ts,
				})
				res.ScoresStaged++
			}
			res.TeamRows++
		}
	}

	if res.TeamRows == 0 {
		res.Outcome = OutcomeNoTeams
		return res, nil
	}
	res.Outcome = OutcomeImported
	return res, staged
}

func findHeader(rows [][]string) int {
	limit := min(len(rows), constants.ImportHeaderScanRows)
	for i := 0; i < limit; i++ {
		for _, c := range rows[i] {
			v := strings.ToLower(unquote(c))
			if v == "round 1" || v == "team name" {
				return i
			}
		}
	}
	return -1
}

// detectSections finds each round marker followed by a "team name" column.
// Metric columns run until a blank, total, rank or the next round marker.
func detectSections(header, lower []string) []section {
	var out []section
	for _, m := range roundMarkers {
		idx := slices.Index(lower, m.key)
		if idx < 0 {
			continue
		}
		nameCol := idx + 1
		if nameCol >= len(lower) || lower[nameCol] != "team name" {
			continue
		}

		sec := section{round: m.round, teamNameCol: nameCol}
		for c := nameCol + 1; c < len(header); c++ {
			v := lower[c]
			if v == "" || v == "total" || v == "rank" || isRoundMarker(v) {
				break
			}
			sec.columns = append(sec.columns, metricColumn{col: c, name: header[c]})
		}
		out = append(out, sec)
	}
	return out
}

type mappedColumn struct {
	col      int
	metricID string
}

// mapColumns matches columns to metrics by exact name first, then by
// containment in either direction.
func mapColumns(sec section, roundMetrics []domain.Metric, report *SectionReport) []mappedColumn {
	var out []mappedColumn
	for _, mc := range sec.columns {
		report.Columns = append(report.Columns, mc.name)
		col := strings.ToLower(mc.name)

		idx := slices.IndexFunc(roundMetrics, func(m domain.Metric) bool {
			return strings.ToLower(m.Name) == col
		})
		if idx < 0 {
			idx = slices.IndexFunc(roundMetrics, func(m domain.Metric) bool {
				name := strings.ToLower(m.Name)
				if name == "" {
					return false
				}
				return strings.Contains(col, name) || strings.Contains(name, col)
			})
		}
		if idx < 0 {
			report.Unmatched = append(report.Unmatched, mc.name)
			continue
		}
		out = append(out, mappedColumn{col: mc.col, metricID: roundMetrics[idx].ID})
		report.Mapped++
	}
	return out
}

func findTeam(teams []domain.Team, name string) (domain.Team, bool) {
	for _, t := range teams {
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.ID, name) {
			return t, true
		}
	}
	return domain.Team{}, false
}
