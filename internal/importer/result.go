package importer

import (
	"fmt"
	"strings"
)

type Outcome int

const (
	OutcomeImported Outcome = iota
	OutcomeEmpty
	OutcomeNoHeader
	OutcomeNoSections
	OutcomeNoTeams
	OutcomeCommitFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeEmpty:
		return "empty"
	case OutcomeNoHeader:
		return "no_header"
	case OutcomeNoSections:
		return "no_sections"
	case OutcomeNoTeams:
		return "no_teams"
	case OutcomeCommitFailed:
		return "commit_failed"
	default:
		return "unknown"
	}
}

// SectionReport describes how one round's columns were mapped.
type SectionReport struct {
	Round     int      `json:"round"`
	Columns   []string `json:"columns"`
	Mapped    int      `json:"mapped"`
	Unmatched []string `json:"unmatched,omitempty"`
}

type Result struct {
	Success       bool            `json:"success"`
	Outcome       Outcome         `json:"outcome"`
	// TeamRows and RowsProcessed count per section, so a sheet row carrying two
	// round sections counts twice.
	TeamRows      int             `json:"teamRows"`
	ScoresStaged  int             `json:"scoresStaged"`
	RowsProcessed int             `json:"rowsProcessed"`
	Sections      []SectionReport `json:"sections,omitempty"`
	UnmatchedRows []string        `json:"unmatchedRows,omitempty"`
	Header        []string        `json:"header,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func (r Result) UnmatchedColumns() []string {
	var out []string
	for _, s := range r.Sections {
		out = append(out, s.Unmatched...)
	}
	return out
}

// Message renders the result in the wording dashboard users already know.
// Failures contain "Could not" or "matched 0 teams".
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeEmpty:
		return "Empty or invalid CSV"
	case OutcomeNoHeader:
		return `Could not find header row (looking for "Round 1" or "Team Name").`
	case OutcomeNoSections:
		header := r.Header
		if len(header) > 10 {
			header = header[:10]
		}
		return "Could not detect any round sections. Header: " + strings.Join(header, ", ")
	case OutcomeNoTeams:
		return strings.TrimSpace(fmt.Sprintf("Processed %d rows but matched 0 teams. %s", r.RowsProcessed, r.sectionLog()))
	case OutcomeCommitFailed:
		return "Could not save imported scores: " + r.Error
	default:
		return strings.TrimSpace(fmt.Sprintf("Success: %d scores for %d team-rows. %s", r.ScoresStaged, r.TeamRows, r.sectionLog()))
	}
}

func (r Result) sectionLog() string {
	parts := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		if s.Mapped == 0 {
			parts = append(parts, fmt.Sprintf("Round %d: no metric matches (CSV cols: %s)", s.Round, strings.Join(s.Columns, ", ")))
			continue
		}
		parts = append(parts, fmt.Sprintf("Round %d: mapped %d metrics", s.Round, s.Mapped))
	}
	return strings.Join(parts, ". ")
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	for c := OutcomeImported; c <= OutcomeCommitFailed; c++ {
		if c.String() == string(b) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown import outcome %q", b)
}
