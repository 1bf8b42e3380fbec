package render

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/platform/logger"
)

// placeholderPattern matches {{variable_name}} tokens, tolerating inner
// whitespace. Group 1 is the variable name.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// cuisineSeparator joins a restaurant's cuisine list into message text.
const cuisineSeparator = ", "

// Resolver renders placeholder variables against a restaurant.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a new Resolver.
// If logger is nil, a default logger will be used.
func NewResolver(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		logger: log.With(slog.String("component", "render")),
	}
}

// Extract scans the text for placeholder tokens and returns the distinct
// variable names referenced, in order of first appearance.
func (r *Resolver) Extract(text string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Resolve substitutes every known placeholder in text with its value from
// the restaurant. Unknown variables are left verbatim; a derivation that
// errors is logged at WARN and its token left verbatim. Resolve never
// returns an error — downstream sequence creation depends on that.
func (r *Resolver) Resolve(ctx context.Context, text string, restaurant *domain.Restaurant) string {
	if text == "" || restaurant == nil {
		return text
	}

	log := logger.FromContextOrDefault(ctx, r.logger)

	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]

		value, err := r.lookup(name, restaurant)
		if err != nil {
			log.Warn("variable derivation failed, leaving token literal",
				slog.String("variable", name),
				slog.String("restaurant_id", restaurant.ID.String()),
				slog.String("error", err.Error()))
			return token
		}
		if value == nil {
			// Unknown variable: not an error, the token stays as typed.
			return token
		}
		return *value
	})
}

// lookup maps a variable name to its value. A nil value with a nil error
// means the variable is unknown. Direct fields come straight off the
// restaurant; computed mappings may derive values and may fail.
func (r *Resolver) lookup(name string, restaurant *domain.Restaurant) (*string, error) {
	switch name {
	case "restaurant_name":
		return strPtr(restaurant.Name), nil
	case "contact_name":
		return strPtr(restaurant.ContactName), nil
	case "email":
		return strPtr(restaurant.Email), nil
	case "phone":
		return strPtr(restaurant.Phone), nil
	case "city":
		return strPtr(restaurant.City), nil
	case "cuisines":
		return strPtr(strings.Join(restaurant.Cuisines, cuisineSeparator)), nil
	case "has_online_ordering":
		if restaurant.HasOnlineOrdering {
			return strPtr("yes"), nil
		}
		return strPtr("no"), nil
	case "ordering_url":
		url, err := restaurant.OrderingURL()
		if err != nil {
			return nil, err
		}
		return strPtr(url), nil
	default:
		return nil, nil
	}
}

func strPtr(s string) *string {
	return &s
}
