package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
)

// MessageTemplateStore defines the read-only view of the message template
// library. Steps that reference a template resolve their body and subject
// line through this interface.
type MessageTemplateStore interface {
	// GetByID retrieves a message template by its unique ID within the
	// organisation. Returns ErrMessageTemplateNotFound if it does not exist.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.MessageTemplate, error)
}
