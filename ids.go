package permkit

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDs are ULIDs: lexicographically sortable and creation-ordered, which
// also makes them the stable tie-break for conflicting specific
// overrides created in the same instant.

var (
	idOnce    sync.Once
	idMu      sync.Mutex
	idEntropy *ulid.MonotonicEntropy
)

func initEntropy() {
	idEntropy = ulid.Monotonic(rand.Reader, 0)
}

// NewID returns a new ULID string using the current UTC time and a
// monotonic entropy source. Safe for concurrent use.
func NewID() string {
	return NewIDAt(time.Now().UTC())
}

// NewIDAt generates an id at the provided time. Useful for tests and for
// seeding records with deterministic creation order.
func NewIDAt(t time.Time) string {
	idOnce.Do(initEntropy)
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), idEntropy).String()
}

// ParseID validates that s is a well-formed ULID and returns it trimmed.
func ParseID(s string) (string, error) {
	if s == "" {
		return "", NewError(ErrInvalidID, "id cannot be empty")
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", NewError(ErrInvalidID, "id is not a valid ulid")
	}
	return s, nil
}
