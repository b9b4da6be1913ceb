package storage

import (
	"context"
	"encoding/json"
	"time"
)

// Timer is a persisted scheduled event. ID is zero until the row is inserted;
// short-delay timers dispatched from memory never receive one.
type Timer struct {
	ID        int64
	Event     string
	Args      []any
	Kwargs    map[string]any
	CreatedAt time.Time
	ExpiresAt time.Time
}

type timerExtra struct {
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// InsertTimer persists the timer and assigns its ID. The args/kwargs payload
// round-trips through a single JSON column.
func (s *Store) InsertTimer(ctx context.Context, timer *Timer) error {
	extra := timerExtra{Args: timer.Args, Kwargs: timer.Kwargs}
	if extra.Args == nil {
		extra.Args = []any{}
	}
	if extra.Kwargs == nil {
		extra.Kwargs = map[string]any{}
	}
	payload, err := json.Marshal(extra)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO timers (event, extra, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, timer.Event, string(payload), timer.CreatedAt.UnixMilli(), timer.ExpiresAt.UnixMilli())
	if err != nil {
		return err
	}
	timer.ID, err = result.LastInsertId()
	return err
}

// DueTimers returns the timers expiring within the horizon, soonest first.
func (s *Store) DueTimers(ctx context.Context, within time.Duration) ([]Timer, error) {
	cutoff := time.Now().Add(within).UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event, extra, created_at, expires_at
		FROM timers
		WHERE expires_at < ?
		ORDER BY expires_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var timers []Timer
	for rows.Next() {
		var timer Timer
		var payload string
		var created, expires int64
		if err := rows.Scan(&timer.ID, &timer.Event, &payload, &created, &expires); err != nil {
			return nil, err
		}
		var extra timerExtra
		if err := json.Unmarshal([]byte(payload), &extra); err != nil {
			return nil, err
		}
		timer.Args = extra.Args
		timer.Kwargs = extra.Kwargs
		timer.CreatedAt = time.UnixMilli(created)
		timer.ExpiresAt = time.UnixMilli(expires)
		timers = append(timers, timer)
	}
	return timers, rows.Err()
}

// DeleteTimer removes a timer row and reports whether this call deleted it.
// The rows-affected check is what keeps a timer from firing twice when two
// poll cycles pick up the same row.
func (s *Store) DeleteTimer(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountTimers reports the number of persisted timer rows.
func (s *Store) CountTimers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timers`).Scan(&count)
	return count, err
}
