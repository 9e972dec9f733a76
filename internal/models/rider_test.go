package models_test

import (
	"testing"

	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun(t *testing.T) {
	fixed := uuid.New()
	groups := []models.Group{{Position: 0}, {ID: fixed, Position: 1}}

	run := models.NewRun([]int{10, 11}, groups)

	require.NotNil(t, run)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NotEqual(t, uuid.Nil, run.Groups[0].ID)
	assert.Equal(t, fixed, run.Groups[1].ID)
	assert.Equal(t, []int{10, 11}, run.RiderIDs)
}

func TestRunRiders(t *testing.T) {
	run := models.NewRun([]int{10, 11, 12}, []models.Group{{Members: []int{2, 0}}, {Members: []int{1}}})

	assert.Equal(t, []int{12, 10}, run.Riders(run.Groups[0]))
	assert.Equal(t, []int{11}, run.Riders(run.Groups[1]))
	assert.Empty(t, run.Riders(models.Group{}))
}
