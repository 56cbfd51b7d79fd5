package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_UsesLocation(t *testing.T) {
	loc, err := Location("Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, loc, NewSystem(loc).Now().Location())
	assert.Equal(t, time.UTC, NewSystem(nil).Now().Location())
}

func TestLocation(t *testing.T) {
	loc, err := Location("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = Location("Mars/Olympus")
	assert.Error(t, err)
}

func TestFixed(t *testing.T) {
	start := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	assert.Equal(t, start, c.Now())

	c.Advance(24 * time.Hour)
	assert.Equal(t, start.AddDate(0, 0, 1), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}
