// Package gate implements the idempotency gate guarding webhook intake.
//
// A gate admits a transaction identifier at most once per dedup window. The
// marker write must be a single atomic check-and-set so two concurrent
// intakes cannot both observe "absent". The gate is deliberately weaker than
// the store's uniqueness constraint: markers expire, the constraint does not.
package gate

import (
	"errors"
	"time"
)

// DefaultTTL is the dedup window applied when a gate is built without one.
const DefaultTTL = time.Hour

// ErrEmptyID rejects admissions with no identifier.
var ErrEmptyID = errors.New("transaction id is required")

const keyPrefix = "gosettle:intake:"

func markerKey(transactionID string) string {
	return keyPrefix + transactionID
}
