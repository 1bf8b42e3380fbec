package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStep(order int) SequenceStep {
	return SequenceStep{
		ID:         uuid.New(),
		TemplateID: uuid.New(),
		Order:      order,
		Type:       StepTypeCall,
		DelayValue: 2,
		DelayUnit:  DelayUnitDays,
		Message:    InlineMessage("call about the menu"),
	}
}

func validTemplate(steps ...SequenceStep) *SequenceTemplate {
	return &SequenceTemplate{
		ID:       uuid.New(),
		OrgID:    uuid.New(),
		Name:     "Demo Follow-up",
		Steps:    steps,
		IsActive: true,
	}
}

func TestMessageSourceValidate(t *testing.T) {
	t.Run("template reference requires an id", func(t *testing.T) {
		assert.NoError(t, TemplateRef(uuid.New()).Validate())
		assert.ErrorIs(t, TemplateRef(uuid.Nil).Validate(), ErrInvalidMessageSource)
	})

	t.Run("inline message requires text", func(t *testing.T) {
		assert.NoError(t, InlineMessage("hi").Validate())
		assert.ErrorIs(t, InlineMessage("").Validate(), ErrInvalidMessageSource)
	})

	t.Run("zero value is invalid", func(t *testing.T) {
		assert.ErrorIs(t, MessageSource{}.Validate(), ErrInvalidMessageSource)
	})
}

func TestSequenceStepValidate(t *testing.T) {
	t.Run("valid step", func(t *testing.T) {
		step := validStep(1)
		assert.NoError(t, step.Validate())
	})

	t.Run("order below one", func(t *testing.T) {
		step := validStep(0)
		assert.ErrorIs(t, step.Validate(), ErrStepOrderInvalid)
	})

	t.Run("unknown step type", func(t *testing.T) {
		step := validStep(1)
		step.Type = "carrier_pigeon"
		assert.ErrorIs(t, step.Validate(), ErrInvalidStepType)
	})

	t.Run("negative delay", func(t *testing.T) {
		step := validStep(1)
		step.DelayValue = -1
		assert.ErrorIs(t, step.Validate(), ErrStepDelayNegative)
	})

	t.Run("subject line only on email steps", func(t *testing.T) {
		step := validStep(1)
		step.SubjectLine = "Quick question"
		assert.ErrorIs(t, step.Validate(), ErrStepSubjectNotEmail)

		step.Type = StepTypeEmail
		assert.NoError(t, step.Validate())
	})
}

func TestSequenceStepDelay(t *testing.T) {
	cases := []struct {
		unit  DelayUnit
		value int
		want  time.Duration
	}{
		{DelayUnitMinutes, 30, 30 * time.Minute},
		{DelayUnitHours, 4, 4 * time.Hour},
		{DelayUnitDays, 3, 72 * time.Hour},
		{DelayUnitWeeks, 1, 7 * 24 * time.Hour},
	}

	for _, tc := range cases {
		step := validStep(1)
		step.DelayValue = tc.value
		step.DelayUnit = tc.unit
		assert.Equal(t, tc.want, step.Delay(), "unit %s", tc.unit)
	}
}

func TestSequenceTemplateValidate(t *testing.T) {
	t.Run("valid template", func(t *testing.T) {
		tpl := validTemplate(validStep(1), validStep(2), validStep(5))
		assert.NoError(t, tpl.Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		tpl := validTemplate(validStep(1))
		tpl.Name = ""
		assert.ErrorIs(t, tpl.Validate(), ErrTemplateNameEmpty)
	})

	t.Run("duplicate step order", func(t *testing.T) {
		tpl := validTemplate(validStep(1), validStep(1))
		assert.ErrorIs(t, tpl.Validate(), ErrStepOrderNotIncreasing)
	})

	t.Run("decreasing step order", func(t *testing.T) {
		tpl := validTemplate(validStep(2), validStep(1))
		assert.ErrorIs(t, tpl.Validate(), ErrStepOrderNotIncreasing)
	})

	t.Run("template with no steps is valid but not startable", func(t *testing.T) {
		tpl := validTemplate()
		require.NoError(t, tpl.Validate())
		assert.ErrorIs(t, tpl.Startable(), ErrTemplateHasNoSteps)
	})
}

func TestSequenceTemplateStartable(t *testing.T) {
	t.Run("active with steps", func(t *testing.T) {
		tpl := validTemplate(validStep(1))
		assert.NoError(t, tpl.Startable())
	})

	t.Run("inactive", func(t *testing.T) {
		tpl := validTemplate(validStep(1))
		tpl.IsActive = false
		assert.ErrorIs(t, tpl.Startable(), ErrTemplateInactive)
	})
}
