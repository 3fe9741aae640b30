package scraper

import (
	"context"
	"encoding/json"
)

// Fetcher retrieves the raw product-details response for one ASIN.
// A nil payload with a nil error means the source had no data for it.
type Fetcher interface {
	Fetch(ctx context.Context, asin string) (json.RawMessage, error)
}
