package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caresched/internal/model"
)

// CreateClient inserts a client along with any owned session specs.
func (s *Store) CreateClient(ctx context.Context, c *model.Client) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.StatusActive
	}
	certs, err := marshalJSON(c.RequiredCertifications)
	if err != nil {
		return err
	}
	caps, err := marshalJSON(c.RequiredRoomCapabilities)
	if err != nil {
		return err
	}
	windows, err := marshalJSON(c.PreferredTimeWindows)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO clients (id, org_id, name, gender, sessions_per_week, required_certifications,
			preferred_room_id, required_room_capabilities, preferred_time_windows, gender_preference,
			status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrgID, c.Name, c.Gender, c.SessionsPerWeek, certs,
		c.PreferredRoomID, caps, windows, c.GenderPreference, c.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}

	for i := range c.Specs {
		spec := &c.Specs[i]
		spec.ClientID = c.ID
		if err := insertSpec(ctx, tx, c.OrgID, spec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateSessionSpec adds one recurring requirement to an existing client.
func (s *Store) CreateSessionSpec(ctx context.Context, orgID string, spec *model.SessionSpec) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := insertSpec(ctx, tx, orgID, spec); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSpec(ctx context.Context, tx *sql.Tx, orgID string, spec *model.SessionSpec) error {
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	certs, err := marshalJSON(spec.RequiredCertifications)
	if err != nil {
		return err
	}
	caps, err := marshalJSON(spec.RequiredRoomCapabilities)
	if err != nil {
		return err
	}
	spec.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_specs (id, client_id, org_id, name, sessions_per_week, duration_minutes,
			required_certifications, required_room_capabilities, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		spec.ID, spec.ClientID, orgID, spec.Name, spec.SessionsPerWeek, spec.DurationMinutes,
		certs, caps, spec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session spec: %w", err)
	}
	return nil
}

// GetClient returns one client with its specs, scoped to the organization.
func (s *Store) GetClient(ctx context.Context, orgID, id string) (*model.Client, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, org_id, name, gender, sessions_per_week, required_certifications,
			preferred_room_id, required_room_capabilities, preferred_time_windows,
			gender_preference, status, created_at, updated_at
		FROM clients WHERE id = ? AND org_id = ?`, id, orgID)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if err := s.attachSpecs(ctx, map[string]*model.Client{c.ID: c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListActiveClients returns the organization's active clients with specs,
// ordered by id for determinism.
func (s *Store) ListActiveClients(ctx context.Context, orgID string) ([]model.Client, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, org_id, name, gender, sessions_per_week, required_certifications,
			preferred_room_id, required_room_capabilities, preferred_time_windows,
			gender_preference, status, created_at, updated_at
		FROM clients WHERE org_id = ? AND status = ? ORDER BY id`,
		orgID, model.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Client, len(out))
	for i := range out {
		byID[out[i].ID] = &out[i]
	}
	if err := s.attachSpecs(ctx, byID); err != nil {
		return nil, err
	}
	return out, nil
}

// SetClientStatus flips a client's status.
func (s *Store) SetClientStatus(ctx context.Context, orgID, id string, status model.EntityStatus) error {
	res, err := s.ExecContext(ctx,
		"UPDATE clients SET status = ?, updated_at = ? WHERE id = ? AND org_id = ?",
		status, time.Now().UTC(), id, orgID,
	)
	if err != nil {
		return fmt.Errorf("update client status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row rowScanner) (*model.Client, error) {
	var (
		c                         model.Client
		certs, caps, windows      sql.NullString
		preferredRoom, genderPref sql.NullString
	)
	if err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Gender, &c.SessionsPerWeek, &certs,
		&preferredRoom, &caps, &windows, &genderPref, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.PreferredRoomID = preferredRoom.String
	c.GenderPreference = genderPref.String
	if certs.Valid {
		if err := unmarshalJSON(certs.String, &c.RequiredCertifications); err != nil {
			return nil, fmt.Errorf("decode required certifications: %w", err)
		}
	}
	if caps.Valid {
		if err := unmarshalJSON(caps.String, &c.RequiredRoomCapabilities); err != nil {
			return nil, fmt.Errorf("decode room capabilities: %w", err)
		}
	}
	if windows.Valid {
		if err := unmarshalJSON(windows.String, &c.PreferredTimeWindows); err != nil {
			return nil, fmt.Errorf("decode time windows: %w", err)
		}
	}
	return &c, nil
}

func (s *Store) attachSpecs(ctx context.Context, clients map[string]*model.Client) error {
	if len(clients) == 0 {
		return nil
	}
	ids := make([]any, 0, len(clients))
	placeholders := ""
	for id := range clients {
		if placeholders != "" {
			placeholders += ","
		}
		placeholders += "?"
		ids = append(ids, id)
	}

	rows, err := s.QueryContext(ctx, `
		SELECT id, client_id, name, sessions_per_week, duration_minutes,
			required_certifications, required_room_capabilities, created_at
		FROM session_specs WHERE client_id IN (`+placeholders+`) ORDER BY created_at, id`, ids...,
	)
	if err != nil {
		return fmt.Errorf("list session specs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			spec        model.SessionSpec
			certs, caps sql.NullString
		)
		if err := rows.Scan(&spec.ID, &spec.ClientID, &spec.Name, &spec.SessionsPerWeek,
			&spec.DurationMinutes, &certs, &caps, &spec.CreatedAt); err != nil {
			return err
		}
		if certs.Valid {
			if err := unmarshalJSON(certs.String, &spec.RequiredCertifications); err != nil {
				return fmt.Errorf("decode spec certifications: %w", err)
			}
		}
		if caps.Valid {
			if err := unmarshalJSON(caps.String, &spec.RequiredRoomCapabilities); err != nil {
				return fmt.Errorf("decode spec capabilities: %w", err)
			}
		}
		if c, ok := clients[spec.ClientID]; ok {
			c.Specs = append(c.Specs, spec)
		}
	}
	return rows.Err()
}
