package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// StepType identifies the outreach channel a sequence step uses.
type StepType string

// Possible step type values
const (
	StepTypeEmail            StepType = "email"
	StepTypeCall             StepType = "call"
	StepTypeText             StepType = "text"
	StepTypeSocialMessage    StepType = "social_message"
	StepTypeDemoMeeting      StepType = "demo_meeting"
	StepTypeInternalActivity StepType = "internal_activity"
)

// DelayUnit is the unit a step's relative delay is expressed in.
type DelayUnit string

// Possible delay unit values
const (
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
	DelayUnitWeeks   DelayUnit = "weeks"
)

// Template and step validation errors
var (
	ErrTemplateIDEmpty        = errors.New("sequence template ID cannot be empty")
	ErrTemplateOrgIDEmpty     = errors.New("sequence template org ID cannot be empty")
	ErrTemplateNameEmpty      = errors.New("sequence template name cannot be empty")
	ErrTemplateInactive       = errors.New("sequence template is not active")
	ErrTemplateHasNoSteps     = errors.New("sequence template has no steps")
	ErrStepOrderInvalid       = errors.New("step order must be positive")
	ErrStepOrderNotIncreasing = errors.New("step orders must be unique and increasing")
	ErrStepDelayNegative      = errors.New("step delay cannot be negative")
	ErrStepSubjectNotEmail    = errors.New("subject line is only valid on email steps")
)

// MessageSourceKind discriminates the two ways a step can source its
// message text.
type MessageSourceKind string

// Possible message source kinds
const (
	MessageSourceTemplate MessageSourceKind = "template"
	MessageSourceInline   MessageSourceKind = "inline"
)

// MessageSource is a tagged variant: a step's message comes either from a
// reusable message template (by reference) or from inline custom text.
// Exactly one of the two is populated, selected by Kind.
type MessageSource struct {
	Kind       MessageSourceKind `json:"kind"`
	TemplateID uuid.UUID         `json:"template_id,omitempty"`
	Text       string            `json:"text,omitempty"`
}

// TemplateRef creates a MessageSource referencing a message template.
func TemplateRef(templateID uuid.UUID) MessageSource {
	return MessageSource{Kind: MessageSourceTemplate, TemplateID: templateID}
}

// InlineMessage creates a MessageSource carrying inline custom text.
func InlineMessage(text string) MessageSource {
	return MessageSource{Kind: MessageSourceInline, Text: text}
}

// Validate checks that the MessageSource is a well-formed variant.
func (m MessageSource) Validate() error {
	switch m.Kind {
	case MessageSourceTemplate:
		if m.TemplateID == uuid.Nil {
			return ErrInvalidMessageSource
		}
	case MessageSourceInline:
		if m.Text == "" {
			return ErrInvalidMessageSource
		}
	default:
		return ErrInvalidMessageSource
	}
	return nil
}

// SequenceStep is one ordered unit of a sequence template: a channel, a
// relative delay from the previous step, and a message source.
type SequenceStep struct {
	ID          uuid.UUID     `json:"id"`
	TemplateID  uuid.UUID     `json:"template_id"`
	Order       int           `json:"order"`
	Type        StepType      `json:"type"`
	DelayValue  int           `json:"delay_value"`
	DelayUnit   DelayUnit     `json:"delay_unit"`
	Message     MessageSource `json:"message"`
	SubjectLine string        `json:"subject_line,omitempty"`
}

// Validate checks if the SequenceStep has valid data.
func (s *SequenceStep) Validate() error {
	if s.ID == uuid.Nil {
		return ErrInvalidID
	}
	if s.Order < 1 {
		return ErrStepOrderInvalid
	}
	if !isValidStepType(s.Type) {
		return ErrInvalidStepType
	}
	if s.DelayValue < 0 {
		return ErrStepDelayNegative
	}
	if !isValidDelayUnit(s.DelayUnit) {
		return ErrInvalidDelayUnit
	}
	if err := s.Message.Validate(); err != nil {
		return err
	}
	if s.SubjectLine != "" && s.Type != StepTypeEmail {
		return ErrStepSubjectNotEmail
	}
	return nil
}

// Delay converts the step's relative delay into a time.Duration.
func (s *SequenceStep) Delay() time.Duration {
	switch s.DelayUnit {
	case DelayUnitMinutes:
		return time.Duration(s.DelayValue) * time.Minute
	case DelayUnitHours:
		return time.Duration(s.DelayValue) * time.Hour
	case DelayUnitDays:
		return time.Duration(s.DelayValue) * 24 * time.Hour
	case DelayUnitWeeks:
		return time.Duration(s.DelayValue) * 7 * 24 * time.Hour
	default:
		return 0
	}
}

// SequenceTemplate is the reusable ordered recipe of steps a sequence
// instance is generated from.
type SequenceTemplate struct {
	ID         uuid.UUID      `json:"id"`
	OrgID      uuid.UUID      `json:"org_id"`
	Name       string         `json:"name"`
	Steps      []SequenceStep `json:"steps"`
	IsActive   bool           `json:"is_active"`
	UsageCount int            `json:"usage_count"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate checks if the SequenceTemplate has valid data, including that
// its step orders are unique and strictly increasing.
func (t *SequenceTemplate) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTemplateIDEmpty
	}
	if t.OrgID == uuid.Nil {
		return ErrTemplateOrgIDEmpty
	}
	if t.Name == "" {
		return ErrTemplateNameEmpty
	}

	lastOrder := 0
	for i := range t.Steps {
		if err := t.Steps[i].Validate(); err != nil {
			return err
		}
		if t.Steps[i].Order <= lastOrder {
			return ErrStepOrderNotIncreasing
		}
		lastOrder = t.Steps[i].Order
	}
	return nil
}

// Startable reports whether the template may be instantiated: it must be
// active and have at least one step. The returned error identifies which
// precondition failed.
func (t *SequenceTemplate) Startable() error {
	if !t.IsActive {
		return ErrTemplateInactive
	}
	if len(t.Steps) == 0 {
		return ErrTemplateHasNoSteps
	}
	return nil
}

// isValidStepType checks if the given type is a valid StepType.
func isValidStepType(t StepType) bool {
	switch t {
	case StepTypeEmail, StepTypeCall, StepTypeText,
		StepTypeSocialMessage, StepTypeDemoMeeting, StepTypeInternalActivity:
		return true
	default:
		return false
	}
}

// isValidDelayUnit checks if the given unit is a valid DelayUnit.
func isValidDelayUnit(u DelayUnit) bool {
	switch u {
	case DelayUnitMinutes, DelayUnitHours, DelayUnitDays, DelayUnitWeeks:
		return true
	default:
		return false
	}
}
