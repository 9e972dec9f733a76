package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/convoy/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// MaxGeocodingAttempts is the number of failed lookups after which a rider is no longer fetched
// without coordinates.
const MaxGeocodingAttempts = 5

// FetchPendingRiders retrieves active riders that have not been assigned to a group yet.
// Riders without coordinates are returned only while they have an address and fewer than
// MaxGeocodingAttempts failed lookups. Results are ordered by creation date and limited to
// the specified count.
func (r *Repository) FetchPendingRiders(ctx context.Context, limit int) ([]models.Rider, error) {
	var riders []models.Rider
	query := `
		SELECT rider_id, name, address, latitude, longitude
		FROM public.riders
		WHERE
			is_active = true
			AND group_id IS NULL
			AND (
				latitude IS NOT NULL
				OR (geocoding_attempts < $1 AND address IS NOT NULL AND address <> '')
			)
		ORDER BY created_at ASC
		LIMIT $2;
	`

	rows, err := r.db.Query(ctx, query, MaxGeocodingAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending riders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rider    models.Rider
			address  pgtype.Text
			lat, lng pgtype.Float8
		)
		if errScan := rows.Scan(&rider.ID, &rider.Name, &address, &lat, &lng); errScan != nil {
			return nil, fmt.Errorf("failed to scan pending rider: %w", errScan)
		}
		rider.Address = address.String
		if lat.Valid && lng.Valid {
			rider.Coordinates = &models.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
		}
		r.log.DebugContext(ctx, "A pending rider has been received.",
			"ID", rider.ID, "located", rider.Coordinates != nil)
		riders = append(riders, rider)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return riders, nil
}

// UpdateRiderCoordinates stores the geocoded position of a rider and clears its geocoding error.
func (r *Repository) UpdateRiderCoordinates(ctx context.Context, riderID int, coords models.Coordinates) error {
	query := `
		UPDATE riders
		SET
			latitude = $1,
			longitude = $2,
			geocoding_error = NULL
		WHERE
			rider_id = $3;
	`

	_, err := r.db.Exec(ctx, query, coords.Latitude, coords.Longitude, riderID)
	if err != nil {
		return fmt.Errorf("failed to update rider coordinates: %w", err)
	}

	return nil
}

// IncrementFailureCount increments the geocoding attempt count for a rider
// and records the last error message.
func (r *Repository) IncrementFailureCount(ctx context.Context, riderID int, errMsg string) error {
	query := `
		UPDATE riders
		SET
			geocoding_attempts = geocoding_attempts + 1,
			geocoding_error = $1
		WHERE rider_id = $2;
	`

	_, err := r.db.Exec(ctx, query, errMsg, riderID)
	if err != nil {
		return fmt.Errorf("failed to update geocoding error and number of attempts: %w", err)
	}

	return nil
}

// SaveRun persists every group of a run and assigns the member riders to it.
// Either the whole run is stored or nothing is.
func (r *Repository) SaveRun(ctx context.Context, run models.Run) (err error) {
	insertGroup := `
		INSERT INTO ride_groups (group_id, run_id, position, centroid_lat, centroid_lng, address, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	assignRiders := `
		UPDATE riders
		SET group_id = $1
		WHERE rider_id = ANY($2);
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if errRb := tx.Rollback(ctx); errRb != nil && !errors.Is(errRb, pgx.ErrTxClosed) {
			r.log.ErrorContext(ctx, "Failed to rollback run", "run", run.ID, "error", errRb)
		}
	}()

	for _, group := range run.Groups {
		_, err = tx.Exec(ctx, insertGroup,
			group.ID, run.ID, group.Position,
			group.Centroid.Latitude, group.Centroid.Longitude,
			group.Address, len(group.Members), run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group %d: %w", group.Position, err)
		}

		_, err = tx.Exec(ctx, assignRiders, group.ID, run.Riders(group))
		if err != nil {
			return fmt.Errorf("failed to assign riders to group %d: %w", group.Position, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	r.log.InfoContext(ctx, "Run saved", "run", run.ID, "groups", len(run.Groups))

	return nil
}
