package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/domain"
)

func TestParseDay(t *testing.T) {
	now := time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)

	d, err := parseDay("2024-09-01", now)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 9, 1), d)

	d, err = parseDay("today", now)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 8, 12), d)

	d, err = parseDay("tomorrow", now)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2024, 8, 13), d)

	d, err = parseDay("", now)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseDay("whenever", now)
	assert.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestFilterValuesReadsNumbers(t *testing.T) {
	got := filterValues(map[string]string{"status": "done", "project_ref_id": "3"})
	assert.Equal(t, map[string]any{"status": "done", "project_ref_id": int64(3)}, got)
	assert.Nil(t, filterValues(nil))
}
