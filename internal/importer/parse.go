package importer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var lineSplitRe = regexp.MustCompile(`\r?\n`)

// parseLine splits one line on commas. A double quote toggles quoted mode and
// is dropped; fields are trimmed.
func parseLine(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

func parseRows(text string) [][]string {
	lines := lineSplitRe.Split(text, -1)
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = parseLine(l)
	}
	return rows
}

func unquote(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(unquote(row[col]))
}

var errorMarkers = map[string]bool{
	"#DIV/0!": true,
	"#N/A":    true,
	"#REF!":   true,
}

// parseScore reads a score cell; blanks, spreadsheet error markers and
// non-numeric text are rejected.
func parseScore(raw string) (float64, bool) {
	if raw == "" || errorMarkers[raw] {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
