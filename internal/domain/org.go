package domain

import (
	"errors"

	"github.com/google/uuid"
)

// OrgContext validation errors
var (
	// ErrOrgIDEmpty is returned when the organisation ID is empty or nil.
	ErrOrgIDEmpty = errors.New("organisation ID cannot be empty")

	// ErrOrgUserIDEmpty is returned when the acting user ID is empty or nil.
	ErrOrgUserIDEmpty = errors.New("acting user ID cannot be empty")
)

// OrgContext identifies the organisation and the acting user for a request.
// Every service and store call takes it explicitly; there is no ambient
// "current organisation" state anywhere in the engine.
type OrgContext struct {
	OrgID  uuid.UUID `json:"org_id"`
	UserID uuid.UUID `json:"user_id"`
}

// NewOrgContext creates an OrgContext for the given organisation and user.
// Returns an error if validation fails.
func NewOrgContext(orgID, userID uuid.UUID) (OrgContext, error) {
	org := OrgContext{OrgID: orgID, UserID: userID}
	if err := org.Validate(); err != nil {
		return OrgContext{}, err
	}
	return org, nil
}

// Validate checks if the OrgContext has valid data.
func (o OrgContext) Validate() error {
	if o.OrgID == uuid.Nil {
		return ErrOrgIDEmpty
	}
	if o.UserID == uuid.Nil {
		return ErrOrgUserIDEmpty
	}
	return nil
}
