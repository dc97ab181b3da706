package wac

import "fmt"

// ValidationError rejects a transaction before any state is touched.
// A rejected transaction is never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wac: invalid transaction: %s %s", e.Field, e.Reason)
}

// ConsistencyError reports a numeric invariant violated after an update.
// It is surfaced, never silently corrected: the repair path is a full
// recalculation from the ledger, not a local fix-up that could mask a
// client-entered data error.
type ConsistencyError struct {
	UserID    string
	Asset     string
	Invariant string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("wac: consistency violation for %s/%s: %s", e.UserID, e.Asset, e.Invariant)
}
