package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The record-store client and other
// infrastructure layers return these (optionally wrapped) so services can
// translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row does not exist in the record store
// - ErrAlreadyUsed: voucher already consumed
// - ErrInvalidState: row in wrong state for requested operation
// - ErrUnavailable: record store or lock backend temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
