package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caresched/internal/model"
)

// CreateRule inserts an organization rule.
func (s *Store) CreateRule(ctx context.Context, r *model.Rule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err := s.ExecContext(ctx, `
		INSERT INTO rules (id, org_id, category, description, payload, priority, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrgID, r.Category, r.Description, string(r.Payload), r.Priority, r.Active, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// ListActiveRules returns active rules in priority order: priority
// descending, then creation order ascending.
func (s *Store) ListActiveRules(ctx context.Context, orgID string) ([]model.Rule, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, org_id, category, description, payload, priority, active, created_at, updated_at
		FROM rules WHERE org_id = ? AND active = 1
		ORDER BY priority DESC, created_at ASC, id ASC`, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []model.Rule
	for rows.Next() {
		var (
			r                    model.Rule
			description, payload sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.OrgID, &r.Category, &description, &payload, &r.Priority, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Description = description.String
		r.Payload = []byte(payload.String)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRuleActive toggles a rule without deleting its payload.
func (s *Store) SetRuleActive(ctx context.Context, orgID, id string, active bool) error {
	res, err := s.ExecContext(ctx,
		"UPDATE rules SET active = ?, updated_at = ? WHERE id = ? AND org_id = ?",
		active, time.Now().UTC(), id, orgID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateHoliday inserts an org-wide holiday date.
func (s *Store) CreateHoliday(ctx context.Context, h *model.Holiday) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.CreatedAt = time.Now().UTC()

	_, err := s.ExecContext(ctx, `
		INSERT INTO holidays (id, org_id, date, name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.OrgID, h.Date, h.Name, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert holiday: %w", err)
	}
	return nil
}

// ListHolidays returns holidays inside [from, to] inclusive, by date.
func (s *Store) ListHolidays(ctx context.Context, orgID, from, to string) ([]model.Holiday, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, org_id, date, name, created_at
		FROM holidays WHERE org_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, orgID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var out []model.Holiday
	for rows.Next() {
		var (
			h    model.Holiday
			name sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.OrgID, &h.Date, &name, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Name = name.String
		out = append(out, h)
	}
	return out, rows.Err()
}
