package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetValuesClient reads private sheets through the Sheets API with a
// service account and renders the values as CSV.
type SheetValuesClient struct {
	service *sheets.Service
	logger  zerolog.Logger
}

func NewSheetValuesClient(ctx context.Context, credentialsJSON string, logger zerolog.Logger) (*SheetValuesClient, error) {
	service, err := sheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentialsJSON)),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	l := logger.With().Str("component", "sheet_values_client").Logger()
	l.Info().Msg("Google Sheets client initialized")
	return &SheetValuesClient{service: service, logger: l}, nil
}

func (c *SheetValuesClient) FetchCSV(ctx context.Context, sheetURL string) (string, error) {
	ref, err := ParseSheetURL(sheetURL)
	if err != nil {
		return "", err
	}

	title, err := c.tabTitle(ctx, ref)
	if err != nil {
		return "", err
	}

	resp, err := c.service.Spreadsheets.Values.Get(ref.ID, title).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to read spreadsheet %s: %w", ref.ID, err)
	}
	if len(resp.Values) == 0 {
		c.logger.Warn().Str("sheet_id", ref.ID).Str("tab", title).Msg("spreadsheet is empty")
	}

	text, err := valuesToCSV(resp.Values)
	if err != nil {
		return "", err
	}
	c.logger.Info().Str("sheet_id", ref.ID).Str("tab", title).Int("rows", len(resp.Values)).Msg("sheet values read")
	return text, nil
}

// tabTitle resolves the tab named by gid; without a gid the first tab is used.
func (c *SheetValuesClient) tabTitle(ctx context.Context, ref SheetRef) (string, error) {
	ss, err := c.service.Spreadsheets.Get(ref.ID).
		Fields("sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to read spreadsheet %s: %w", ref.ID, err)
	}
	if len(ss.Sheets) == 0 {
		return "", fmt.Errorf("spreadsheet %s has no tabs", ref.ID)
	}
	if ref.GID == "" {
		return ss.Sheets[0].Properties.Title, nil
	}

	gid, err := strconv.ParseInt(ref.GID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid gid %q: %w", ref.GID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.SheetId == gid {
			return sh.Properties.Title, nil
		}
	}
	return "", fmt.Errorf("spreadsheet %s has no tab with gid %s", ref.ID, ref.GID)
}

func valuesToCSV(values [][]interface{}) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	for _, row := range values {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to render sheet row: %w", err)
		}
	}
	w.Flush()
	return b.String(), w.Error()
}
