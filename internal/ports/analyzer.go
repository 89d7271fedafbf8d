package ports

import (
	"context"

	"jiragent/internal/domain/fieldconfig"
)

// Analyzer is the AI text-analysis collaborator. It receives a free-form
// description and the reduced field schema (key to natural-language
// description) and returns a value map keyed by the same field keys. The
// engine trusts the returned values and merges them as-is.
type Analyzer interface {
	ExtractFields(ctx context.Context, description string, schema map[string]string) (map[string]fieldconfig.Value, error)
}
