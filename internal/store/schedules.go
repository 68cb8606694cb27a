package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caresched/internal/model"
)

// CreateScheduleWithSessions persists a freshly generated schedule and
// its sessions in one transaction. The schedule starts at version 1.
func (s *Store) CreateScheduleWithSessions(ctx context.Context, sched *model.Schedule, sessions []model.Session) error {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if sched.Status == "" {
		sched.Status = model.ScheduleDraft
	}
	sched.Version = 1
	now := time.Now().UTC()
	sched.CreatedAt, sched.UpdatedAt = now, now

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedules (id, org_id, week_start, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.OrgID, sched.WeekStart, sched.Status, sched.Version, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}

	for i := range sessions {
		sessions[i].ScheduleID = sched.ID
		if err := insertSession(ctx, tx, &sessions[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertSession(ctx context.Context, tx *sql.Tx, sess *model.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, schedule_id, practitioner_id, client_id, room_id, date, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ScheduleID, sess.PractitionerID, sess.ClientID, sess.RoomID,
		sess.Date, sess.StartTime, sess.EndTime, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSchedule returns one schedule by id.
func (s *Store) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	var sched model.Schedule
	err := s.QueryRowContext(ctx, `
		SELECT id, org_id, week_start, status, version, created_at, updated_at
		FROM schedules WHERE id = ?`, id,
	).Scan(&sched.ID, &sched.OrgID, &sched.WeekStart, &sched.Status, &sched.Version, &sched.CreatedAt, &sched.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &sched, nil
}

// ListSessions returns a schedule's sessions in deterministic order.
func (s *Store) ListSessions(ctx context.Context, scheduleID string) ([]model.Session, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, schedule_id, practitioner_id, client_id, room_id, date, start_time, end_time, created_at
		FROM sessions WHERE schedule_id = ?
		ORDER BY date, start_time, id`, scheduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var (
			sess   model.Session
			roomID sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.ScheduleID, &sess.PractitionerID, &sess.ClientID,
			&roomID, &sess.Date, &sess.StartTime, &sess.EndTime, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sess.RoomID = roomID.String
		out = append(out, sess)
	}
	return out, rows.Err()
}

// bumpVersion increments the schedule version iff the caller's expected
// version is still current. Zero rows affected means either a concurrent
// mutation won (ErrVersionConflict) or the schedule is gone (ErrNotFound).
func bumpVersion(ctx context.Context, tx *sql.Tx, scheduleID string, expectedVersion int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE schedules SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?",
		time.Now().UTC(), scheduleID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("bump schedule version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules WHERE id = ?", scheduleID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// AppendSession adds one session to an existing schedule with a version
// check.
func (s *Store) AppendSession(ctx context.Context, scheduleID string, expectedVersion int, sess *model.Session) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, scheduleID, expectedVersion); err != nil {
		return err
	}
	sess.ScheduleID = scheduleID
	if err := insertSession(ctx, tx, sess); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveSession deletes one session from a schedule with a version check.
func (s *Store) RemoveSession(ctx context.Context, scheduleID string, expectedVersion int, sessionID string) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, scheduleID, expectedVersion); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE id = ? AND schedule_id = ?", sessionID, scheduleID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// ReplaceSession atomically frees the old slot and commits the new one.
// Used by move modifications so no intermediate state is observable.
func (s *Store) ReplaceSession(ctx context.Context, scheduleID string, expectedVersion int, sessionID string, replacement *model.Session) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, scheduleID, expectedVersion); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"DELETE FROM sessions WHERE id = ? AND schedule_id = ?", sessionID, scheduleID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	replacement.ScheduleID = scheduleID
	if err := insertSession(ctx, tx, replacement); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateScheduleStatus transitions a schedule's status with a version
// check.
func (s *Store) UpdateScheduleStatus(ctx context.Context, scheduleID string, expectedVersion int, status model.ScheduleStatus) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, scheduleID, expectedVersion); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE schedules SET status = ? WHERE id = ?", status, scheduleID); err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	return tx.Commit()
}
