package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageTemplate is a reusable body (and optional subject line) from the
// message template library. Sequence steps may reference one instead of
// carrying an inline message.
type MessageTemplate struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"org_id"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	SubjectLine string    `json:"subject_line,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
