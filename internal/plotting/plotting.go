// Package plotting renders grouping results as a longitude/latitude scatter plot.
// It is presentation only and never influences grouping.
package plotting

import (
	"errors"
	"fmt"
	"io"

	"github.com/UnknownOlympus/convoy/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Default canvas size.
const (
	Width  = 8 * vg.Inch
	Height = 6 * vg.Inch
)

// ErrNothingToPlot is returned when there are no groups to draw.
var ErrNothingToPlot = errors.New("nothing to plot")

// New builds a plot with one coloured scatter per group and a cross at every centroid.
func New(title string, points []models.Point, groups []models.Group) (*plot.Plot, error) {
	if len(groups) == 0 {
		return nil, ErrNothingToPlot
	}

	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = "Longitude"
	plt.Y.Label.Text = "Latitude"
	plt.Add(plotter.NewGrid())

	centroids := make(plotter.XYs, len(groups))
	for i, group := range groups {
		xys := make(plotter.XYs, len(group.Members))
		for j, member := range group.Members {
			xys[j] = plotter.XY{X: points[member].Coordinates.Longitude, Y: points[member].Coordinates.Latitude}
		}

		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to create scatter for group %d: %w", group.Position, err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)

		plt.Add(scatter)
		plt.Legend.Add(fmt.Sprintf("group %d (%d)", group.Position, len(group.Members)), scatter)

		centroids[i] = plotter.XY{X: group.Centroid.Longitude, Y: group.Centroid.Latitude}
	}

	marks, err := plotter.NewScatter(centroids)
	if err != nil {
		return nil, fmt.Errorf("failed to create centroid scatter: %w", err)
	}
	marks.GlyphStyle.Shape = draw.CrossGlyph{}
	marks.GlyphStyle.Radius = vg.Points(5)
	plt.Add(marks)
	plt.Legend.Add("centroid", marks)

	return plt, nil
}

// Render writes the plot of the groups to w as a PNG image.
func Render(w io.Writer, title string, points []models.Point, groups []models.Group) error {
	plt, err := New(title, points, groups)
	if err != nil {
		return err
	}

	writer, err := plt.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}

	if _, err = writer.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}

	return nil
}

// Save writes the plot to a file. The format follows the file extension.
func Save(path, title string, points []models.Point, groups []models.Group) error {
	plt, err := New(title, points, groups)
	if err != nil {
		return err
	}

	if err = plt.Save(Width, Height, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}

	return nil
}
