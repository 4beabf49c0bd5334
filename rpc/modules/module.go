package modules

import (
	"errors"
	"net/http"

	"curiochain/core"
	"curiochain/native/registry"
	"curiochain/native/rewards"
	"curiochain/native/router"
)

const (
	codeInvalidParams     = -32602
	codeServerError       = -32000
	codeUnauthorized      = -32001
	codeNothingToClaim    = -32030
	codeInsufficientFunds = -32031
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// ErrorFor translates engine sentinels into the wire-level error taxonomy so
// every handler maps the same failure onto the same status and code.
func ErrorFor(err error) *ModuleError {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return &ModuleError{HTTPStatus: http.StatusForbidden, Code: codeUnauthorized, Message: "authority lacks required role"}
	case errors.Is(err, rewards.ErrNothingToClaim):
		return &ModuleError{HTTPStatus: http.StatusConflict, Code: codeNothingToClaim, Message: "nothing to claim"}
	case errors.Is(err, router.ErrInsufficientFunds):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInsufficientFunds, Message: "insufficient funds"}
	case errors.Is(err, rewards.ErrUnregisteredUnit),
		errors.Is(err, rewards.ErrPoolNotFound),
		errors.Is(err, rewards.ErrTreasuryNotFound),
		errors.Is(err, registry.ErrContentNotFound),
		errors.Is(err, registry.ErrBundleNotFound),
		errors.Is(err, registry.ErrUnitNotFound),
		errors.Is(err, registry.ErrRentalNotFound):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: codeServerError, Message: err.Error()}
	case errors.Is(err, rewards.ErrInvalidAmount),
		errors.Is(err, rewards.ErrInvalidWeight),
		errors.Is(err, core.ErrNotRentable):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: err.Error()}
	case errors.Is(err, rewards.ErrArithmeticOverflow):
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "arithmetic overflow; transaction rolled back"}
	default:
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
}
