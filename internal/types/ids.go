package types

import (
	"time"

	"github.com/google/uuid"
)

// NewRuleID generates a UUIDv7 rule identifier.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewOperationID generates a UUIDv7 operation identifier. UUIDv7 string
// order follows creation order, which supersession checks rely on.
func NewOperationID() OperationID {
	return OperationID(uuid.Must(uuid.NewV7()).String())
}

// NewBatchID generates a UUIDv7 batch identifier for loads that arrive
// without one.
func NewBatchID() BatchID {
	return BatchID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to a RuleID.
func ParseRuleID(s string) (RuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return RuleID(s), nil
}

// ParseOperationID validates and converts a string to an OperationID.
func ParseOperationID(s string) (OperationID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return OperationID(s), nil
}

// OperationIDTime extracts the timestamp embedded in a UUIDv7 operation ID.
// Returns the zero time for anything that does not parse.
func OperationIDTime(id OperationID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
