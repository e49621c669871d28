// Package noaa downloads the Mauna Loa monthly CO2 record from NOAA GML.
package noaa

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
)

// DefaultURL is the monthly mean CO2 text file.
const DefaultURL = "https://gml.noaa.gov/webdata/ccgg/trends/co2/co2_mm_mlo.txt"

// Client fetches the CO2 text file.
type Client struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// NewClient creates a NOAA CO2 client. An empty url uses DefaultURL.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		logger:     logger,
	}
}

// FetchCO2 returns the monthly CO2 records of the years touched by period,
// with growth rates computed.
func (c *Client) FetchCO2(ctx context.Context, period domain.DateRange) ([]domain.CO2Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("co2 request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("noaa error: status %d: %s", resp.StatusCode, body)
	}

	skipped := 0
	recs, err := domain.ParseCO2Text(resp.Body, period.Start.Year(), period.End.Year(), func(line int, err error) {
		skipped++
		c.logger.Debug("co2 line skipped", "line", line, "error", err)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("co2 records fetched", "records", len(recs), "skipped_lines", skipped)
	return recs, nil
}
