package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	rain := 15.0
	days := 2
	rec := domain.MonthlyRecord{
		Date:       time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Zone:       "North-West",
		State:      "Kaduna",
		RainfallMM: &rain,
		RainyDays:  &days,
	}

	msg, err := serializeToMessage(rec, "run-1")
	require.NoError(t, err)

	assert.Equal(t, []byte("Kaduna|1990-01-01"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "zone", msg.Headers[0].Key)
	assert.Equal(t, []byte("North-West"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "1990-01-01", body["Date"])
	assert.InDelta(t, 1990, body["Year"], 0)
	assert.Equal(t, "Kaduna", body["State"])
	assert.InDelta(t, 15, body["Rainfall_mm"], 0)
	assert.InDelta(t, 2, body["Rainy_Days"], 0)
	assert.Contains(t, body, "Avg_Temp_C")
	assert.Nil(t, body["Avg_Temp_C"])
	assert.Contains(t, body, "Max_Humidity_Percent")
}

func TestMessageKey(t *testing.T) {
	rec := domain.MonthlyRecord{State: "Akwa Ibom", Date: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "Akwa Ibom|2023-12-01", MessageKey(rec))
}
