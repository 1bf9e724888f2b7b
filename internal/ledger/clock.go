package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TimeResolution is the coarsest precision any backend stores (PostgreSQL
// timestamptz keeps microseconds). Times are truncated to it before they
// are written so a record reads back exactly as it was digested.
const TimeResolution = time.Microsecond

// Clock supplies wall-clock time for record timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// IDGenerator produces unique identifiers for accounts and transfers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort
// roughly by creation time. This keeps transfer ids readable in logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
