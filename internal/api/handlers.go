package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/UnknownOlympus/convoy/internal/grouping"
	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/UnknownOlympus/convoy/internal/plotting"
	"github.com/UnknownOlympus/convoy/internal/rebalance"
	"github.com/UnknownOlympus/convoy/internal/service"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Response formats selected with the format query parameter.
const (
	formatJSON    = "json"
	formatGeoJSON = "geojson"
	formatPNG     = "png"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type pointRequest struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

type addressesRequest struct {
	Addresses []string `json:"addresses"`
}

type centroid struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type groupsResponse struct {
	Groups    [][]string `json:"groups"`
	Labels    []int      `json:"labels"`
	Centroids []centroid `json:"centroids"`
	Addresses []string   `json:"addresses,omitempty"`
	Dropped   []string   `json:"dropped,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// clusterGroup groups a JSON array of named coordinates.
func (s *Server) clusterGroup(writer http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	format := req.URL.Query().Get("format")
	if format == "" {
		format = formatJSON
	}
	if format != formatJSON && format != formatGeoJSON && format != formatPNG {
		s.fail(writer, req, fmt.Errorf("%w: unknown format %q", grouping.ErrInvalidInput, format))
		return
	}

	points, err := decodePoints(writer, req)
	if err != nil {
		s.fail(writer, req, err)
		return
	}

	plan, err := s.planner.Group(ctx, points)
	if err != nil {
		s.fail(writer, req, err)
		return
	}

	switch format {
	case formatGeoJSON:
		s.writeGeoJSON(writer, req, points, plan)
	case formatPNG:
		s.writePNG(writer, req, points, plan)
	default:
		s.writeJSON(writer, req, http.StatusOK, newGroupsResponse(points, plan))
	}
}

// clusterAddresses geocodes and groups a list of addresses.
func (s *Server) clusterAddresses(writer http.ResponseWriter, req *http.Request) {
	var body addressesRequest
	if err := json.NewDecoder(http.MaxBytesReader(writer, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.fail(writer, req, fmt.Errorf("%w: malformed body: %w", grouping.ErrInvalidInput, err))
		return
	}

	result, err := s.planner.ClusterAddresses(req.Context(), body.Addresses)
	if err != nil {
		s.fail(writer, req, err)
		return
	}

	resp := newGroupsResponse(result.Points, result.Plan)
	resp.Addresses = make([]string, len(result.Plan.Groups))
	for i, group := range result.Plan.Groups {
		resp.Addresses[i] = group.Address
	}
	resp.Dropped = result.Dropped

	s.writeJSON(writer, req, http.StatusOK, resp)
}

func decodePoints(writer http.ResponseWriter, req *http.Request) ([]models.Point, error) {
	var body []pointRequest
	dec := json.NewDecoder(http.MaxBytesReader(writer, req.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %w", grouping.ErrInvalidInput, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: no points provided", grouping.ErrInvalidInput)
	}

	points := make([]models.Point, len(body))
	for i, item := range body {
		if item.Lat == nil || item.Lng == nil {
			return nil, fmt.Errorf("%w: point %d (%s) is missing lat or lng", grouping.ErrInvalidInput, i, item.Name)
		}
		points[i] = models.Point{
			Identity:    item.Name,
			Coordinates: models.Coordinates{Latitude: *item.Lat, Longitude: *item.Lng},
		}
	}

	return points, nil
}

func newGroupsResponse(points []models.Point, plan *grouping.Plan) groupsResponse {
	resp := groupsResponse{
		Groups:    plan.Identities(points),
		Labels:    plan.Labels,
		Centroids: make([]centroid, len(plan.Groups)),
	}
	for i, group := range plan.Groups {
		resp.Centroids[i] = centroid{Lat: group.Centroid.Latitude, Lng: group.Centroid.Longitude}
	}

	return resp
}

// writeGeoJSON renders members as points with a group property and centroids as
// points flagged with centroid=true.
func (s *Server) writeGeoJSON(writer http.ResponseWriter, req *http.Request, points []models.Point, plan *grouping.Plan) {
	fc := geojson.NewFeatureCollection()
	for i, point := range points {
		feature := geojson.NewFeature(orb.Point{point.Coordinates.Longitude, point.Coordinates.Latitude})
		feature.Properties["name"] = point.Identity
		feature.Properties["group"] = plan.Labels[i]
		fc.Append(feature)
	}
	for _, group := range plan.Groups {
		feature := geojson.NewFeature(orb.Point{group.Centroid.Longitude, group.Centroid.Latitude})
		feature.Properties["group"] = group.Position
		feature.Properties["size"] = len(group.Members)
		feature.Properties["centroid"] = true
		fc.Append(feature)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		s.fail(writer, req, fmt.Errorf("failed to encode geojson: %w", err))
		return
	}

	writer.Header().Set("Content-Type", "application/geo+json")
	writer.WriteHeader(http.StatusOK)
	if _, err = writer.Write(data); err != nil {
		s.log.ErrorContext(req.Context(), "failed to write reply", "error", err)
	}
}

func (s *Server) writePNG(writer http.ResponseWriter, req *http.Request, points []models.Point, plan *grouping.Plan) {
	var buf bytes.Buffer
	if err := plotting.Render(&buf, "Ride groups", points, plan.Groups); err != nil {
		s.fail(writer, req, fmt.Errorf("failed to render plot: %w", err))
		return
	}

	writer.Header().Set("Content-Type", "image/png")
	writer.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(writer); err != nil {
		s.log.ErrorContext(req.Context(), "failed to write reply", "error", err)
	}
}

func (s *Server) writeJSON(writer http.ResponseWriter, req *http.Request, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		s.log.ErrorContext(req.Context(), "failed to write reply", "error", err)
	}
}

// fail maps an error to a status code and writes it as {"error": message}.
func (s *Server) fail(writer http.ResponseWriter, req *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, grouping.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, rebalance.ErrInfeasible):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrLookupUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(req.Context(), "Request failed", "path", req.URL.Path, "error", err)
	} else {
		s.log.InfoContext(req.Context(), "Request rejected", "path", req.URL.Path, "status", status, "error", err)
	}

	s.writeJSON(writer, req, status, errorResponse{Error: err.Error()})
}
