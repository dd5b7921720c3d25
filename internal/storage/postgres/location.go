package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/player"
)

// LocationRecord is one stored player state.
type LocationRecord struct {
	ID         int64
	SessionID  uuid.UUID
	State      player.State
	RecordedAt time.Time
}

// LocationRepository stores player states in player_locations.
type LocationRepository struct {
	db *pgxpool.Pool
}

// NewLocationRepository creates a LocationRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewLocationRepository(db *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{db: db}
}

// Insert stores st for session at the given time. Absent fields are stored
// as NULL.
//
// Postcondition: Returns the stored record with ID set, or a non-nil error.
func (r *LocationRepository) Insert(ctx context.Context, session uuid.UUID, st player.State, at time.Time) (LocationRecord, error) {
	var x, y, z *float64
	if loc, ok := st.Loc.Get(); ok {
		x, y, z = &loc.X, &loc.Y, &loc.Z
	}

	rec := LocationRecord{SessionID: session, State: st}
	err := r.db.QueryRow(ctx,
		`INSERT INTO player_locations (session_id, area_name, map_name, loc_x, loc_y, loc_z, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, recorded_at`,
		session, optPtr(st.AreaName), optPtr(st.MapName), x, y, z, at,
	).Scan(&rec.ID, &rec.RecordedAt)
	if err != nil {
		return LocationRecord{}, fmt.Errorf("inserting player location: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit records for session, newest first.
//
// Precondition: limit > 0.
// Postcondition: Returns a non-nil slice; may be empty.
func (r *LocationRepository) Recent(ctx context.Context, session uuid.UUID, limit int) ([]LocationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, area_name, map_name, loc_x, loc_y, loc_z, recorded_at
		 FROM player_locations
		 WHERE session_id = $1
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT $2`,
		session, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying player locations: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanLocation)
	if err != nil {
		return nil, fmt.Errorf("scanning player locations: %w", err)
	}
	if out == nil {
		out = []LocationRecord{}
	}
	return out, nil
}

func scanLocation(row pgx.CollectableRow) (LocationRecord, error) {
	var (
		rec       LocationRecord
		area, mpN *string
		x, y, z   *float64
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &area, &mpN, &x, &y, &z, &rec.RecordedAt); err != nil {
		return LocationRecord{}, err
	}
	if area != nil {
		rec.State.AreaName = player.Some(*area)
	}
	if mpN != nil {
		rec.State.MapName = player.Some(*mpN)
	}
	if x != nil && y != nil && z != nil {
		rec.State.Loc = player.Some(mapdata.Coord3{X: *x, Y: *y, Z: *z})
	}
	return rec, nil
}

func optPtr(o player.Opt[string]) *string {
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}
