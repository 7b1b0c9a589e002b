package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekendCalendar_Default(t *testing.T) {
	c, err := NewWeekendCalendar(nil, []string{"2025-04-13"})
	require.NoError(t, err)

	assert.True(t, c.IsBusinessDay(day(2025, 1, 15)))  // Wednesday
	assert.False(t, c.IsBusinessDay(day(2025, 1, 17))) // Friday
	assert.False(t, c.IsBusinessDay(day(2025, 1, 18))) // Saturday
	assert.True(t, c.IsBusinessDay(day(2025, 1, 19)))  // Sunday
	assert.False(t, c.IsBusinessDay(time.Date(2025, 4, 13, 15, 0, 0, 0, time.UTC)))
}

func TestWeekendCalendar_Custom(t *testing.T) {
	c, err := NewWeekendCalendar([]string{"Sat", "sunday"}, nil)
	require.NoError(t, err)
	assert.True(t, c.IsBusinessDay(day(2025, 1, 17)))
	assert.False(t, c.IsBusinessDay(day(2025, 1, 19)))
}

func TestWeekendCalendar_Errors(t *testing.T) {
	_, err := NewWeekendCalendar([]string{"funday"}, nil)
	assert.Error(t, err)
	_, err = NewWeekendCalendar([]string{"s"}, nil)
	assert.Error(t, err)
	_, err = NewWeekendCalendar(nil, []string{"15/01/2025"})
	assert.Error(t, err)
}

func TestNextBusinessDay(t *testing.T) {
	c, err := NewWeekendCalendar(nil, []string{"2025-01-19"})
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 20), NextBusinessDay(c, day(2025, 1, 17)))
	assert.Equal(t, day(2025, 1, 15), NextBusinessDay(c, day(2025, 1, 15)))
}
