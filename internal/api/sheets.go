package api

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"dabbathon/internal/config"
	"dabbathon/internal/constants"
	"dabbathon/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

var (
	sheetIDRe = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)
	gidRe     = regexp.MustCompile(`[?&#]gid=([0-9]+)`)
)

// SheetRef identifies one tab of a Google spreadsheet.
type SheetRef struct {
	ID  string
	GID string
}

// ParseSheetURL extracts the spreadsheet id and optional tab gid from a share link.
func ParseSheetURL(raw string) (SheetRef, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "docs.google.com/spreadsheets") {
		return SheetRef{}, fmt.Errorf("not a Google Sheet link: %w", domain.ErrInvalidURL)
	}
	m := sheetIDRe.FindStringSubmatch(raw)
	if m == nil {
		return SheetRef{}, fmt.Errorf("could not parse sheet id: %w", domain.ErrInvalidURL)
	}
	ref := SheetRef{ID: m[1]}
	if g := gidRe.FindStringSubmatch(raw); g != nil {
		ref.GID = g[1]
	}
	return ref, nil
}

func (r SheetRef) ExportURL() string {
	u := "https://docs.google.com/spreadsheets/d/" + url.PathEscape(r.ID) + "/export?format=csv"
	if r.GID != "" {
		u += "&gid=" + r.GID
	}
	return u
}

// CSVFetcher downloads one spreadsheet tab as CSV text.
type CSVFetcher interface {
	FetchCSV(ctx context.Context, sheetURL string) (string, error)
}

// NewFetcher uses the Sheets API when service account credentials are
// configured and the public CSV export otherwise. Fetches are throttled.
func NewFetcher(cfg *config.Config, logger zerolog.Logger) (CSVFetcher, error) {
	if cfg.SheetsCredentialsJSON != "" {
		values, err := NewSheetValuesClient(context.Background(), cfg.SheetsCredentialsJSON, logger)
		if err != nil {
			return nil, err
		}
		return Throttle(values, rate.Every(constants.SheetFetchInterval), constants.SheetFetchBurst), nil
	}
	return Throttle(NewSheetClient(logger), rate.Every(constants.SheetFetchInterval), constants.SheetFetchBurst), nil
}

type throttledFetcher struct {
	next    CSVFetcher
	limiter *rate.Limiter
}

// Throttle limits how often next is called; callers wait for a token or
// their context.
func Throttle(next CSVFetcher, every rate.Limit, burst int) CSVFetcher {
	return &throttledFetcher{next: next, limiter: rate.NewLimiter(every, burst)}
}

func (f *throttledFetcher) FetchCSV(ctx context.Context, sheetURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("sheet fetch throttled: %w", err)
	}
	return f.next.FetchCSV(ctx, sheetURL)
}

// SheetClient reads sheets shared as "anyone with the link" through the CSV export endpoint.
type SheetClient struct {
	client  *fasthttp.Client
	baseURL string
	logger  zerolog.Logger
}

func NewSheetClient(logger zerolog.Logger) *SheetClient {
	return &SheetClient{
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
			MaxResponseBodySize: 16 << 20,
		},
		logger: logger.With().Str("component", "sheet_client").Logger(),
	}
}

func (c *SheetClient) FetchCSV(ctx context.Context, sheetURL string) (string, error) {
	ref, err := ParseSheetURL(sheetURL)
	if err != nil {
		return "", err
	}
	target := ref.ExportURL()
	if c.baseURL != "" {
		target = strings.Replace(target, "https://docs.google.com", c.baseURL, 1)
	}

	body, err := doRequest(ctx, c.client, target)
	if err != nil {
		c.logger.Warn().Err(err).Str("sheet_id", ref.ID).Msg("sheet export failed")
		return "", err
	}
	c.logger.Info().Str("sheet_id", ref.ID).Str("gid", ref.GID).Int("bytes", len(body)).Msg("sheet exported")
	return string(body), nil
}

const maxRedirects = 5

func doRequest(ctx context.Context, client *fasthttp.Client, uri string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Cache-Control", "no-store")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		req.SetTimeout(time.Until(deadline))
	}

	// the export endpoint answers with a redirect to googleusercontent
	if err := client.DoRedirects(req, resp, maxRedirects); err != nil {
		return nil, fmt.Errorf("sheet request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("failed to fetch CSV from Google (status %d); ensure the sheet is shared with anyone who has the link", resp.StatusCode())
	}
	return append([]byte(nil), resp.Body()...), nil
}
