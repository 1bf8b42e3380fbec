package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSequenceInstance(t *testing.T) {
	org := testOrg(t)
	templateID := uuid.New()
	restaurantID := uuid.New()

	t.Run("defaults assignee to the acting user", func(t *testing.T) {
		inst, err := NewSequenceInstance(org, templateID, restaurantID, uuid.Nil)
		require.NoError(t, err)

		assert.Equal(t, InstanceStatusActive, inst.Status)
		assert.Equal(t, org.UserID, inst.AssignedTo)
		assert.Equal(t, org.UserID, inst.CreatedBy)
		assert.WithinDuration(t, time.Now().UTC(), inst.StartedAt, 2*time.Second)
	})

	t.Run("explicit assignee is kept", func(t *testing.T) {
		assignee := uuid.New()
		inst, err := NewSequenceInstance(org, templateID, restaurantID, assignee)
		require.NoError(t, err)

		assert.Equal(t, assignee, inst.AssignedTo)
		assert.Equal(t, org.UserID, inst.CreatedBy)
	})

	t.Run("missing template id", func(t *testing.T) {
		_, err := NewSequenceInstance(org, uuid.Nil, restaurantID, uuid.Nil)
		assert.ErrorIs(t, err, ErrInstanceTemplateIDEmpty)
	})

	t.Run("missing restaurant id", func(t *testing.T) {
		_, err := NewSequenceInstance(org, templateID, uuid.Nil, uuid.Nil)
		assert.ErrorIs(t, err, ErrInstanceRestaurantIDEmpty)
	})
}

func TestSequenceInstanceIsTerminal(t *testing.T) {
	cases := map[InstanceStatus]bool{
		InstanceStatusActive:    false,
		InstanceStatusPaused:    false,
		InstanceStatusCompleted: true,
		InstanceStatusCancelled: true,
	}
	for status, want := range cases {
		inst := SequenceInstance{Status: status}
		assert.Equal(t, want, inst.IsTerminal(), "status %s", status)
	}
}

func TestRestaurantOrderingURL(t *testing.T) {
	t.Run("derives from slug", func(t *testing.T) {
		r := Restaurant{ID: uuid.New(), Slug: "pizza-palace"}
		url, err := r.OrderingURL()
		require.NoError(t, err)
		assert.Equal(t, "https://order.forkline.com/pizza-palace", url)
	})

	t.Run("no slug", func(t *testing.T) {
		r := Restaurant{ID: uuid.New()}
		_, err := r.OrderingURL()
		assert.ErrorIs(t, err, ErrRestaurantSlugEmpty)
	})
}
