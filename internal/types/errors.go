package types

import "errors"

// Sentinel errors for DataHerd operations. The lifecycle taxonomy sentinels
// (ErrValidation, ErrTranslationUnavailable, ErrNotFound, ErrConflict,
// ErrBusy, ErrPersistence) are wrapped with detail at the failure site so
// errors.Is keeps working while callers still learn which invariant failed.
var (
	// ErrValidation indicates a rule fails schema invariants. Rejected
	// before reaching the engine.
	ErrValidation = errors.New("rule validation failed")

	// ErrTranslationUnavailable indicates the translation collaborator
	// timed out or errored; callers fall back to pattern parsing.
	ErrTranslationUnavailable = errors.New("rule translation unavailable")

	// ErrNotFound indicates a referenced batch, record, rule, or operation
	// does not exist. Surfaced, never retried.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a rollback targets a superseded commit.
	ErrConflict = errors.New("operation superseded by a later commit")

	// ErrBusy indicates a mutating operation is already in flight for the
	// batch. Retryable by the caller.
	ErrBusy = errors.New("batch has a mutating operation in flight")

	// ErrPersistence indicates an atomic commit/rollback write failed and
	// was rolled back at the storage layer.
	ErrPersistence = errors.New("persistence failure")
)

// Validation detail sentinels. Each wraps into ErrValidation via errors.Join
// at construction so both the marker and the invariant survive unwrapping.
var (
	// ErrNoConditions indicates a rule carries an action but no conditions.
	ErrNoConditions = errors.New("conditions must not be empty")

	// ErrClientScopeWithoutContext indicates scope=client with no
	// client_context.
	ErrClientScopeWithoutContext = errors.New("client scope requires a client context")

	// ErrUnknownOperator indicates an operator outside the enumerated set.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrUnknownAction indicates an action kind outside the tagged variant.
	ErrUnknownAction = errors.New("unknown rule action")

	// ErrModifyWithoutTarget indicates a modify action with no target field.
	ErrModifyWithoutTarget = errors.New("modify action requires a target field")

	// ErrEmptyField indicates a condition with an empty field name.
	ErrEmptyField = errors.New("condition field must not be empty")

	// ErrTooManyConditions indicates a rule exceeds MaxConditionsPerRule.
	ErrTooManyConditions = errors.New("rule has too many conditions")

	// ErrFieldNameTooLong indicates a field name exceeds MaxFieldNameLength.
	ErrFieldNameTooLong = errors.New("field name too long")

	// ErrUnknownScope indicates a scope outside {global, client}.
	ErrUnknownScope = errors.New("unknown rule scope")

	// ErrNonNumericThreshold indicates an lt/gt condition whose comparison
	// value cannot be read as a number.
	ErrNonNumericThreshold = errors.New("numeric operator requires a numeric comparison value")
)

// Validation wraps an invariant sentinel into the ErrValidation taxonomy.
func Validation(invariant error) error {
	return errors.Join(ErrValidation, invariant)
}
