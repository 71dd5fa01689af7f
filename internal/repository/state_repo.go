package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"monotub_dashboard/internal/models"
)

// StateSQLite stores the last known device status in a single-row table.
type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	snapshotRowID = 1

	upsertSnapshotSQL = `
		INSERT INTO status_snapshot (id, temperature, humidity, fog_on, fan_on, fan_manual, setpoint, has_setpoint, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			temperature=excluded.temperature,
			humidity=excluded.humidity,
			fog_on=excluded.fog_on,
			fan_on=excluded.fan_on,
			fan_manual=excluded.fan_manual,
			setpoint=excluded.setpoint,
			has_setpoint=excluded.has_setpoint,
			received_at=excluded.received_at
	`

	selectSnapshotSQL = `
		SELECT id, temperature, humidity, fog_on, fan_on, fan_manual, setpoint, has_setpoint, received_at
		FROM status_snapshot WHERE id=?
	`
)

// Save upserts the snapshot row. A zero ReceivedAt is stamped with the current UTC time.
func (r *StateSQLite) Save(ctx context.Context, snap models.StatusSnapshot) error {
	ts := snap.ReceivedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	st := snap.Status
	_, err := r.db.ExecContext(ctx, upsertSnapshotSQL,
		snapshotRowID,
		st.Temperature,
		st.Humidity,
		st.FogState,
		st.FanState,
		st.FanManual,
		st.Setpoint,
		snap.HasSetpoint,
		ts,
	)
	return err
}

// Load returns the stored snapshot, or a zero value (ID 0) when nothing was saved yet.
func (r *StateSQLite) Load(ctx context.Context) (models.StatusSnapshot, error) {
	row := r.db.QueryRowContext(ctx, selectSnapshotSQL, snapshotRowID)

	var s models.StatusSnapshot
	if err := row.Scan(
		&s.ID,
		&s.Status.Temperature,
		&s.Status.Humidity,
		&s.Status.FogState,
		&s.Status.FanState,
		&s.Status.FanManual,
		&s.Status.Setpoint,
		&s.HasSetpoint,
		&s.ReceivedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.StatusSnapshot{}, nil
		}
		return models.StatusSnapshot{}, err
	}
	s.ReceivedAt = s.ReceivedAt.UTC()
	return s, nil
}
