package modules

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"curiochain/core"
	"curiochain/native/registry"
	"curiochain/native/rewards"
)

func TestErrorForMapsEngineSentinels(t *testing.T) {
	if modErr := ErrorFor(core.ErrUnauthorized); modErr.HTTPStatus != http.StatusForbidden || modErr.Code != codeUnauthorized {
		t.Fatalf("unauthorized mapping: %+v", modErr)
	}
	if modErr := ErrorFor(rewards.ErrNothingToClaim); modErr.HTTPStatus != http.StatusConflict || modErr.Code != codeNothingToClaim {
		t.Fatalf("nothing-to-claim mapping: %+v", modErr)
	}
	if modErr := ErrorFor(registry.ErrContentNotFound); modErr.HTTPStatus != http.StatusNotFound {
		t.Fatalf("not-found mapping: %+v", modErr)
	}
	if modErr := ErrorFor(rewards.ErrArithmeticOverflow); modErr.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("overflow mapping: %+v", modErr)
	}
}

func TestErrorForSeesWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("claim unit-1: %w", rewards.ErrNothingToClaim)
	if modErr := ErrorFor(wrapped); modErr.Code != codeNothingToClaim {
		t.Fatalf("wrapped sentinel mapping: %+v", modErr)
	}
}

func TestErrorForDefaultsToServerError(t *testing.T) {
	modErr := ErrorFor(errors.New("disk on fire"))
	if modErr.HTTPStatus != http.StatusInternalServerError || modErr.Code != codeServerError {
		t.Fatalf("default mapping: %+v", modErr)
	}
	if modErr.Message != "disk on fire" {
		t.Fatalf("default message = %q", modErr.Message)
	}
}
