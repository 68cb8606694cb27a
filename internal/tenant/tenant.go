// Package tenant enforces the organization boundary: every entity id a
// caller supplies must belong to the caller's organization. Failures
// name the offending reference, never a raw not-found.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"caresched/internal/model"
	"caresched/internal/store"
)

// ErrForeignRef is the sentinel wrapped by every RefError.
var ErrForeignRef = errors.New("reference outside organization")

// RefError names exactly which reference failed validation.
type RefError struct {
	Field string // "practitioner_id", "client_id", "room_id", "organization_id"
	ID    string
}

func (e *RefError) Error() string {
	return fmt.Sprintf("%s %q is invalid or belongs to another organization", e.Field, e.ID)
}

func (e *RefError) Unwrap() error { return ErrForeignRef }

// Refs is the set of optional entity references to validate. Empty
// fields are skipped.
type Refs struct {
	PractitionerID string
	ClientID       string
	RoomID         string
}

// Lookups is the slice of the store the validator reads.
type Lookups interface {
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	GetPractitioner(ctx context.Context, orgID, id string) (*model.Practitioner, error)
	GetClient(ctx context.Context, orgID, id string) (*model.Client, error)
	GetRoom(ctx context.Context, orgID, id string) (*model.Room, error)
}

// Validator checks entity references against one organization. An
// optional OrgCache memoizes organization lookups.
type Validator struct {
	store Lookups
	cache *OrgCache
}

func NewValidator(store Lookups, cache *OrgCache) *Validator {
	return &Validator{store: store, cache: cache}
}

// Organization resolves an organization, consulting the cache first.
// Inactive organizations fail validation the same way missing ones do.
func (v *Validator) Organization(ctx context.Context, id string) (*model.Organization, error) {
	if v.cache != nil {
		if org, ok := v.cache.Get(ctx, id); ok {
			if !org.Active {
				return nil, &RefError{Field: "organization_id", ID: id}
			}
			return org, nil
		}
	}
	org, err := v.store.GetOrganization(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &RefError{Field: "organization_id", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve organization: %w", err)
	}
	if v.cache != nil {
		v.cache.Put(ctx, org)
	}
	if !org.Active {
		return nil, &RefError{Field: "organization_id", ID: id}
	}
	return org, nil
}

// ValidateRefs confirms each supplied id belongs to the organization.
// The first failing reference aborts with a RefError naming it.
func (v *Validator) ValidateRefs(ctx context.Context, orgID string, refs Refs) error {
	if _, err := v.Organization(ctx, orgID); err != nil {
		return err
	}
	if refs.PractitionerID != "" {
		if _, err := v.store.GetPractitioner(ctx, orgID, refs.PractitionerID); err != nil {
			return refErr("practitioner_id", refs.PractitionerID, err)
		}
	}
	if refs.ClientID != "" {
		if _, err := v.store.GetClient(ctx, orgID, refs.ClientID); err != nil {
			return refErr("client_id", refs.ClientID, err)
		}
	}
	if refs.RoomID != "" {
		if _, err := v.store.GetRoom(ctx, orgID, refs.RoomID); err != nil {
			return refErr("room_id", refs.RoomID, err)
		}
	}
	return nil
}

func refErr(field, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &RefError{Field: field, ID: id}
	}
	return fmt.Errorf("resolve %s: %w", field, err)
}
