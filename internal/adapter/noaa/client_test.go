package noaa

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func period() domain.DateRange {
	return domain.DateRange{
		Start: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(1991, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func testClient(url string) *Client {
	return NewClient(url, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_FetchCO2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# header\n"+
			"  1990  1  1990.0417  353.79  353.30  -1 -9.99 -0.99\n"+
			"  1991  1  1991.0417  354.87  354.40  -1 -9.99 -0.99\n"+
			"  1992  1  1992.0417  355.88  354.75  -1 -9.99 -0.99\n")
	}))
	defer srv.Close()

	recs, err := testClient(srv.URL).FetchCO2(context.Background(), period())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.NotNil(t, recs[1].GrowthRate)
	assert.Equal(t, 1.08, *recs[1].GrowthRate)
}

func TestClient_FetchCO2_SkipsMalformedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# header\n"+
			"  1990  1  1990.0417  353.79  353.30  -1 -9.99 -0.99\n"+
			"  1990  2  truncated\n"+
			"  1991  1  1991.0417  354.87  354.40  -1 -9.99 -0.99\n")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := NewClient(srv.URL, 5*time.Second, logger)

	recs, err := c.FetchCO2(context.Background(), period())
	require.NoError(t, err)
	require.Len(t, recs, 2)

	out := buf.String()
	assert.Contains(t, out, "co2 line skipped")
	assert.Contains(t, out, "line=3")
	assert.Contains(t, out, "skipped_lines=1")
}

func TestClient_FetchCO2_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchCO2(context.Background(), period())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestNewClient_DefaultURL(t *testing.T) {
	assert.Equal(t, DefaultURL, NewClient("", time.Second, slog.Default()).url)
}
