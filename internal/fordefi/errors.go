package fordefi

import (
	"errors"
	"fmt"
)

// ErrZeroAmount marks a deliberate no-op: a configured amount of 0 refuses
// to build a transfer and surfaces as a Skipped outcome, never as a failure.
var ErrZeroAmount = errors.New("transfer amount is zero")

// UnsupportedAssetError is returned when a (chain, token) pair has no
// scaling/contract rule. Execution fails closed; there is no silent default.
type UnsupportedAssetError struct {
	Chain string
	Token string // empty for native-asset lookups
}

func (e *UnsupportedAssetError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("native asset is not supported for chain %q", e.Chain)
	}
	return fmt.Sprintf("token %q is not supported for chain %q", e.Token, e.Chain)
}

// APIError is a non-2xx response from the custody endpoint, with whatever
// detail the response body carried.
type APIError struct {
	Status int
	Detail string // parsed "detail" field when present, else raw body
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("fordefi api error: status %d", e.Status)
	}
	return fmt.Sprintf("fordefi api error: status %d: %s", e.Status, e.Detail)
}
