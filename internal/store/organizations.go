package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caresched/internal/model"
)

// CreateOrganization inserts a new tenant. A missing ID is generated.
func (s *Store) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	labels, err := marshalJSON(org.Labels)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now

	_, err = s.ExecContext(ctx, `
		INSERT INTO organizations (id, name, timezone, labels, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Timezone, labels, org.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// GetOrganization returns one tenant by id.
func (s *Store) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var (
		org    model.Organization
		labels sql.NullString
	)
	err := s.QueryRowContext(ctx, `
		SELECT id, name, timezone, labels, active, created_at, updated_at
		FROM organizations WHERE id = ?`, id,
	).Scan(&org.ID, &org.Name, &org.Timezone, &labels, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if labels.Valid {
		if err := unmarshalJSON(labels.String, &org.Labels); err != nil {
			return nil, fmt.Errorf("decode labels: %w", err)
		}
	}
	return &org, nil
}

// SetOrganizationActive soft-enables or soft-disables a tenant.
func (s *Store) SetOrganizationActive(ctx context.Context, id string, active bool) error {
	res, err := s.ExecContext(ctx,
		"UPDATE organizations SET active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
