// Package nasapower fetches daily point observations from the NASA POWER API.
package nasapower

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/couchcryptid/climate-data-etl/internal/observability"
)

const (
	// DefaultBaseURL is the public NASA POWER host.
	DefaultBaseURL = "https://power.larc.nasa.gov"

	dailyPointPath = "/api/temporal/daily/point"
	community      = "AG"
	fillValue      = -999.0
)

// Client implements the daily point query against NASA POWER.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a NASA POWER client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// FetchDaily returns one observation per day in r that the provider reported,
// in ascending date order. Days where every parameter carries the fill value
// are still returned, with an empty Values map.
//
// Errors wrap domain.ErrTransient (network failures, timeouts, HTTP 429 and
// 5xx, unreadable bodies) or domain.ErrPermanent (any other rejection).
func (c *Client) FetchDaily(ctx context.Context, loc domain.Location, params []domain.Parameter, r domain.DateRange) ([]domain.DailyObservation, error) {
	codes := make([]string, len(params))
	for i, p := range params {
		codes[i] = string(p)
	}
	q := url.Values{
		"parameters": {strings.Join(codes, ",")},
		"community":  {community},
		"longitude":  {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"latitude":   {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"start":      {r.Start.Format(domain.DayLayout)},
		"end":        {r.End.Format(domain.DayLayout)},
		"format":     {"JSON"},
	}

	body, err := c.doRequest(ctx, c.baseURL+dailyPointPath+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return decodeDaily(loc.State, body, r)
}

// HealthCheck issues a small request for a known location to verify the
// provider is reachable and accepting queries.
func (c *Client) HealthCheck(ctx context.Context) error {
	sample := domain.Location{Zone: "North-West", State: "Kaduna", Latitude: 10.52, Longitude: 7.44}
	r := domain.DateRange{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	days, err := c.FetchDaily(ctx, sample, []domain.Parameter{domain.ParamTempAvg}, r)
	if err != nil {
		return fmt.Errorf("nasa power health check: %w", err)
	}
	if len(days) == 0 {
		return fmt.Errorf("nasa power health check: %w: empty response", domain.ErrTransient)
	}
	c.logger.Info("nasa power reachable", "days", len(days))
	return nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrPermanent, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ProviderRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("transient").Inc()
		return nil, fmt.Errorf("%w: nasa power request: %w", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("transient").Inc()
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := domain.ErrPermanent
		outcome := "permanent"
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = domain.ErrTransient
			outcome = "transient"
		}
		c.metrics.ProviderRequests.WithLabelValues(outcome).Inc()
		return nil, fmt.Errorf("%w: nasa power API error: status %d: %s", kind, resp.StatusCode, errorMessage(body))
	}

	c.metrics.ProviderRequests.WithLabelValues("success").Inc()
	return body, nil
}

func decodeDaily(state string, body []byte, r domain.DateRange) ([]domain.DailyObservation, error) {
	var pr response
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrTransient, err)
	}
	if pr.Properties.Parameter == nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrTransient, errors.New("missing properties.parameter"))
	}

	fill := fillValue
	if pr.Header.FillValue != nil {
		fill = *pr.Header.FillValue
	}

	byDay := make(map[string]*domain.DailyObservation)
	for code, series := range pr.Properties.Parameter {
		p := domain.Parameter(code)
		for key, v := range series {
			obs, ok := byDay[key]
			if !ok {
				date, err := time.Parse(domain.DayLayout, key)
				if err != nil {
					return nil, fmt.Errorf("%w: decode response: date %q: %w", domain.ErrTransient, key, err)
				}
				if !r.Contains(date) {
					continue
				}
				obs = &domain.DailyObservation{State: state, Date: date, Values: make(map[domain.Parameter]float64)}
				byDay[key] = obs
			}
			if v == nil || *v == fill {
				continue
			}
			obs.Values[p] = *v
		}
	}

	out := make([]domain.DailyObservation, 0, len(byDay))
	for _, obs := range byDay {
		out = append(out, *obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Message != "":
			return e.Message
		case len(e.Messages) > 0:
			return strings.Join(e.Messages, "; ")
		case len(e.Detail) > 0 && string(e.Detail) != "null":
			return string(e.Detail)
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// NASA POWER API response types.

type response struct {
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]*float64 `json:"parameter"`
	} `json:"properties"`
}

type errorResponse struct {
	Message  string          `json:"message"`
	Messages []string        `json:"messages"`
	Detail   json.RawMessage `json:"detail"`
}
