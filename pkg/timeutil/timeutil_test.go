package timeutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_DaysUntil(t *testing.T) {
	d1 := NewDate(2024, time.February, 28)

	assert.Equal(t, 0, d1.DaysUntil(d1))
	assert.Equal(t, 1, d1.DaysUntil(NewDate(2024, time.February, 29)))
	assert.Equal(t, 2, d1.DaysUntil(NewDate(2024, time.March, 1)))
	assert.Equal(t, -3, d1.DaysUntil(NewDate(2024, time.February, 25)))
	assert.Equal(t, 366, NewDate(2024, time.January, 1).DaysUntil(NewDate(2025, time.January, 1)))
}

func TestDate_AddDaysNormalizes(t *testing.T) {
	assert.Equal(t, NewDate(2025, time.January, 1), NewDate(2024, time.December, 31).AddDays(1))
	assert.Equal(t, NewDate(2024, time.February, 1), NewDate(2024, time.January, 32))
}

func TestZone_DateOfUsesLocalCalendar(t *testing.T) {
	zone := NewZone(time.FixedZone("UTC+5", 5*60*60))

	// 20:30 UTC is already the next day at UTC+5.
	instant := time.Date(2024, time.May, 10, 20, 30, 0, 0, time.UTC)
	assert.Equal(t, NewDate(2024, time.May, 11), zone.DateOf(instant))
	assert.Equal(t, 1, zone.Hour(instant))
	assert.Equal(t, NewDate(2024, time.May, 10), UTC.DateOf(instant))
}

func TestZone_DSTDoesNotSkewDayCount(t *testing.T) {
	zone, err := LoadZone("Europe/Berlin")
	if err != nil {
		t.Skip("tz database not available")
	}

	before := zone.At(NewDate(2024, time.March, 30), 23, 0)
	after := zone.At(NewDate(2024, time.April, 1), 0, 30)
	assert.Equal(t, 2, zone.DateOf(before).DaysUntil(zone.DateOf(after)))
}

func TestLoadZone_DefaultAndUnknown(t *testing.T) {
	z, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, DefaultZoneName, z.String())

	_, err = LoadZone("Mars/Olympus")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Day Date `json:"day"`
	}

	data, err := json.Marshal(payload{Day: NewDate(2024, time.June, 3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-06-03"}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2023-12-31"}`), &p))
	assert.Equal(t, NewDate(2023, time.December, 31), p.Day)

	_, err = ParseDate("31/12/2023")
	assert.Error(t, err)
}
