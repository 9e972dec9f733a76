package plotting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/internal/plotting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sample() ([]models.Point, []models.Group) {
	points := []models.Point{
		{Identity: "a", Coordinates: models.Coordinates{Latitude: 50.45, Longitude: 30.52}},
		{Identity: "b", Coordinates: models.Coordinates{Latitude: 50.46, Longitude: 30.53}},
		{Identity: "c", Coordinates: models.Coordinates{Latitude: 49.84, Longitude: 24.03}},
	}
	groups := []models.Group{
		{Position: 0, Members: []int{0, 1}, Centroid: models.Coordinates{Latitude: 50.455, Longitude: 30.525}},
		{Position: 1, Members: []int{2}, Centroid: models.Coordinates{Latitude: 49.84, Longitude: 24.03}},
	}

	return points, groups
}

func TestRender(t *testing.T) {
	points, groups := sample()
	var buf bytes.Buffer

	err := plotting.Render(&buf, "Riders", points, groups)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRender_NoGroups(t *testing.T) {
	var buf bytes.Buffer

	err := plotting.Render(&buf, "Riders", nil, nil)

	require.ErrorIs(t, err, plotting.ErrNothingToPlot)
	assert.Zero(t, buf.Len())
}

func TestSave(t *testing.T) {
	defer filet.CleanUp(t)
	points, groups := sample()
	path := filepath.Join(filet.TmpDir(t, ""), "groups.png")

	err := plotting.Save(path, "Riders", points, groups)

	require.NoError(t, err)
	assert.True(t, filet.Exists(t, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestSave_BadExtension(t *testing.T) {
	defer filet.CleanUp(t)
	points, groups := sample()
	path := filepath.Join(filet.TmpDir(t, ""), "groups.unknown")

	err := plotting.Save(path, "Riders", points, groups)

	require.ErrorContains(t, err, "failed to save plot")
}
