package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"caresched/internal/model"
)

// CreatePractitioner inserts a practitioner.
func (s *Store) CreatePractitioner(ctx context.Context, p *model.Practitioner) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	certs, err := marshalJSON(p.Certifications)
	if err != nil {
		return err
	}
	hours, err := marshalJSON(p.WorkingHours)
	if err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = model.StatusActive
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err = s.ExecContext(ctx, `
		INSERT INTO practitioners (id, org_id, name, gender, certifications, working_hours, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.Name, p.Gender, certs, hours, p.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert practitioner: %w", err)
	}
	return nil
}

// GetPractitioner returns one practitioner scoped to the organization.
func (s *Store) GetPractitioner(ctx context.Context, orgID, id string) (*model.Practitioner, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, org_id, name, gender, certifications, working_hours, status, created_at, updated_at
		FROM practitioners WHERE id = ? AND org_id = ?`, id, orgID)
	p, err := scanPractitioner(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get practitioner: %w", err)
	}
	return p, nil
}

// ListActivePractitioners returns the organization's active practitioners
// ordered by id for determinism.
func (s *Store) ListActivePractitioners(ctx context.Context, orgID string) ([]model.Practitioner, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, org_id, name, gender, certifications, working_hours, status, created_at, updated_at
		FROM practitioners WHERE org_id = ? AND status = ? ORDER BY id`,
		orgID, model.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}
	defer rows.Close()

	var out []model.Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetPractitionerStatus flips a practitioner's status.
func (s *Store) SetPractitionerStatus(ctx context.Context, orgID, id string, status model.EntityStatus) error {
	res, err := s.ExecContext(ctx,
		"UPDATE practitioners SET status = ?, updated_at = ? WHERE id = ? AND org_id = ?",
		status, time.Now().UTC(), id, orgID,
	)
	if err != nil {
		return fmt.Errorf("update practitioner status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPractitioner(row rowScanner) (*model.Practitioner, error) {
	var (
		p            model.Practitioner
		certs, hours sql.NullString
	)
	if err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Gender, &certs, &hours, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if certs.Valid {
		if err := unmarshalJSON(certs.String, &p.Certifications); err != nil {
			return nil, fmt.Errorf("decode certifications: %w", err)
		}
	}
	if hours.Valid {
		if err := unmarshalJSON(hours.String, &p.WorkingHours); err != nil {
			return nil, fmt.Errorf("decode working hours: %w", err)
		}
	}
	return &p, nil
}

// CreateAvailabilityOverride inserts a time-off request.
func (s *Store) CreateAvailabilityOverride(ctx context.Context, o *model.AvailabilityOverride) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = model.OverridePending
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	_, err := s.ExecContext(ctx, `
		INSERT INTO availability_overrides (id, org_id, practitioner_id, date, start_time, end_time, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrgID, o.PractitionerID, o.Date, o.StartTime, o.EndTime, o.Status, o.Reason, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert override: %w", err)
	}
	return nil
}

// SetOverrideStatus approves or rejects a pending override.
func (s *Store) SetOverrideStatus(ctx context.Context, orgID, id string, status model.OverrideStatus) error {
	res, err := s.ExecContext(ctx,
		"UPDATE availability_overrides SET status = ?, updated_at = ? WHERE id = ? AND org_id = ?",
		status, time.Now().UTC(), id, orgID,
	)
	if err != nil {
		return fmt.Errorf("update override status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListApprovedOverrides returns approved overrides for the given dates.
// Only approved overrides affect feasibility.
func (s *Store) ListApprovedOverrides(ctx context.Context, orgID string, dates []string) ([]model.AvailabilityOverride, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(dates)-1) + "?"
	args := make([]any, 0, len(dates)+2)
	args = append(args, orgID, model.OverrideApproved)
	for _, d := range dates {
		args = append(args, d)
	}

	rows, err := s.QueryContext(ctx, `
		SELECT id, org_id, practitioner_id, date, start_time, end_time, status, reason, created_at, updated_at
		FROM availability_overrides
		WHERE org_id = ? AND status = ? AND date IN (`+placeholders+`)
		ORDER BY date, id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []model.AvailabilityOverride
	for rows.Next() {
		var (
			o                          model.AvailabilityOverride
			startTime, endTime, reason sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.OrgID, &o.PractitionerID, &o.Date, &startTime, &endTime, &o.Status, &reason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.StartTime = startTime.String
		o.EndTime = endTime.String
		o.Reason = reason.String
		out = append(out, o)
	}
	return out, rows.Err()
}
