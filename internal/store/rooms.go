package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caresched/internal/model"
)

// CreateRoom inserts a room.
func (s *Store) CreateRoom(ctx context.Context, r *model.Room) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.StatusActive
	}
	caps, err := marshalJSON(r.Capabilities)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err = s.ExecContext(ctx, `
		INSERT INTO rooms (id, org_id, name, capabilities, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrgID, r.Name, caps, r.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom returns one room scoped to the organization.
func (s *Store) GetRoom(ctx context.Context, orgID, id string) (*model.Room, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, org_id, name, capabilities, status, created_at, updated_at
		FROM rooms WHERE id = ? AND org_id = ?`, id, orgID)
	r, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

// ListActiveRooms returns the organization's active rooms ordered by id.
func (s *Store) ListActiveRooms(ctx context.Context, orgID string) ([]model.Room, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, org_id, name, capabilities, status, created_at, updated_at
		FROM rooms WHERE org_id = ? AND status = ? ORDER BY id`,
		orgID, model.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRoom(row rowScanner) (*model.Room, error) {
	var (
		r    model.Room
		caps sql.NullString
	)
	if err := row.Scan(&r.ID, &r.OrgID, &r.Name, &caps, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if caps.Valid {
		if err := unmarshalJSON(caps.String, &r.Capabilities); err != nil {
			return nil, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	return &r, nil
}
