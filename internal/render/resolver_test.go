package render

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/forkline/outreach-api/internal/domain"
)

func testRestaurant() *domain.Restaurant {
	return &domain.Restaurant{
		ID:                uuid.New(),
		OrgID:             uuid.New(),
		Name:              "Pizza Palace",
		Slug:              "pizza-palace",
		ContactName:       "Maria",
		Email:             "maria@pizzapalace.example",
		Phone:             "555-0134",
		City:              "Lisbon",
		Cuisines:          []string{"italian", "pizza"},
		HasOnlineOrdering: true,
	}
}

func TestExtract(t *testing.T) {
	r := NewResolver(nil)

	t.Run("distinct names in first-appearance order", func(t *testing.T) {
		names := r.Extract("Hi {{contact_name}}, {{restaurant_name}} in {{city}} - right, {{contact_name}}?")
		assert.Equal(t, []string{"contact_name", "restaurant_name", "city"}, names)
	})

	t.Run("tolerates inner whitespace", func(t *testing.T) {
		names := r.Extract("Hello {{ restaurant_name }}")
		assert.Equal(t, []string{"restaurant_name"}, names)
	})

	t.Run("no placeholders", func(t *testing.T) {
		assert.Nil(t, r.Extract("plain text"))
	})

	t.Run("unknown names are still extracted", func(t *testing.T) {
		names := r.Extract("{{no_such_variable}}")
		assert.Equal(t, []string{"no_such_variable"}, names)
	})
}

func TestResolveDirectFields(t *testing.T) {
	r := NewResolver(nil)
	ctx := context.Background()
	restaurant := testRestaurant()

	got := r.Resolve(ctx, "Hi {{contact_name}} at {{restaurant_name}} ({{city}}), call {{phone}} or write {{email}}", restaurant)
	assert.Equal(t, "Hi Maria at Pizza Palace (Lisbon), call 555-0134 or write maria@pizzapalace.example", got)
}

func TestResolveComputedFields(t *testing.T) {
	r := NewResolver(nil)
	ctx := context.Background()
	restaurant := testRestaurant()

	t.Run("cuisines joined with comma", func(t *testing.T) {
		got := r.Resolve(ctx, "Cuisine: {{cuisines}}", restaurant)
		assert.Equal(t, "Cuisine: italian, pizza", got)
	})

	t.Run("has_online_ordering renders yes or no", func(t *testing.T) {
		got := r.Resolve(ctx, "{{has_online_ordering}}", restaurant)
		assert.Equal(t, "yes", got)

		restaurant := testRestaurant()
		restaurant.HasOnlineOrdering = false
		got = r.Resolve(ctx, "{{has_online_ordering}}", restaurant)
		assert.Equal(t, "no", got)
	})

	t.Run("ordering_url derived from slug", func(t *testing.T) {
		got := r.Resolve(ctx, "Order here: {{ordering_url}}", restaurant)
		assert.Equal(t, "Order here: https://order.forkline.com/pizza-palace", got)
	})
}

func TestResolveNeverFails(t *testing.T) {
	r := NewResolver(nil)
	ctx := context.Background()

	t.Run("unknown variable stays verbatim", func(t *testing.T) {
		got := r.Resolve(ctx, "Hello {{no_such_variable}}!", testRestaurant())
		assert.Equal(t, "Hello {{no_such_variable}}!", got)
	})

	t.Run("failed derivation leaves token verbatim", func(t *testing.T) {
		restaurant := testRestaurant()
		restaurant.Slug = ""
		got := r.Resolve(ctx, "Order here: {{ordering_url}}", restaurant)
		assert.Equal(t, "Order here: {{ordering_url}}", got)
	})

	t.Run("mixed resolved and unresolved tokens", func(t *testing.T) {
		restaurant := testRestaurant()
		restaurant.Slug = ""
		got := r.Resolve(ctx, "{{restaurant_name}}: {{ordering_url}} {{mystery}}", restaurant)
		assert.Equal(t, "Pizza Palace: {{ordering_url}} {{mystery}}", got)
	})

	t.Run("empty text and nil restaurant", func(t *testing.T) {
		assert.Equal(t, "", r.Resolve(ctx, "", testRestaurant()))
		assert.Equal(t, "{{restaurant_name}}", r.Resolve(ctx, "{{restaurant_name}}", nil))
	})
}
