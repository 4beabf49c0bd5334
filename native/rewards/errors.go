package rewards

import "errors"

var (
	errNilState           = errors.New("rewards engine: state not configured")
	errInvalidPoolID      = errors.New("rewards engine: invalid pool id")
	errInvalidTreasuryID  = errors.New("rewards engine: invalid treasury id")
	errUnitExists         = errors.New("rewards engine: unit already registered")
	errNotContentUnit     = errors.New("rewards engine: unit does not participate in a content pool")
	errNotBundleUnit      = errors.New("rewards engine: unit does not participate in a bundle pool")
	errPoolUnderfunded    = errors.New("rewards engine: pool underfunded")
	errInvalidDuration    = errors.New("rewards engine: epoch duration must be positive")
	errMissingUnitID      = errors.New("rewards engine: unit id required")
	errMissingPoolRef     = errors.New("rewards engine: unit must reference a content or bundle pool")
	errConflictingPoolRef = errors.New("rewards engine: unit cannot reference both a content and a bundle pool")
	errZeroCreator        = errors.New("rewards engine: creator address required")
	errZeroOwner          = errors.New("rewards engine: owner address required")
)

// Sentinels shared with callers. RPC handlers map these onto the public error
// taxonomy, so their identity matters more than their text.
var (
	// ErrNothingToClaim is returned when a claim computes a zero payout.
	ErrNothingToClaim = errors.New("rewards engine: nothing to claim")
	// ErrArithmeticOverflow is returned when accumulator math would exceed
	// 256 bits. The enclosing transaction must be rolled back.
	ErrArithmeticOverflow = errors.New("rewards engine: arithmetic overflow")
	// ErrUnregisteredUnit is returned when a claim references an unknown unit.
	ErrUnregisteredUnit = errors.New("rewards engine: unit not registered")
	// ErrPoolNotFound is returned when an operation targets a pool that has
	// never been initialised.
	ErrPoolNotFound = errors.New("rewards engine: pool not found")
	// ErrInvalidAmount is returned for nil, zero or negative lamport amounts.
	ErrInvalidAmount = errors.New("rewards engine: amount must be positive")
	// ErrInvalidWeight is returned for nil, zero or negative unit weights.
	ErrInvalidWeight = errors.New("rewards engine: weight must be positive")
	// ErrTreasuryNotFound is returned when a read targets a treasury that has
	// never received funds.
	ErrTreasuryNotFound = errors.New("rewards engine: treasury not found")
)
