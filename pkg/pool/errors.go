package pool

import "github.com/boxfriend/poolkit/pkg/errors"

// Sentinels for errors.Is. Every error returned by this package is an
// *errors.Error whose type matches one of these.
var (
	ErrInvalidConfiguration = errors.Sentinel(errors.ErrorTypeInvalidConfiguration, "invalid pool configuration")
	ErrMissingCallback      = errors.Sentinel(errors.ErrorTypeMissingCallback, "missing lifecycle hook")
	ErrInvalidOperation     = errors.Sentinel(errors.ErrorTypeInvalidOperation, "invalid pool operation")
	ErrInvalidArgument      = errors.Sentinel(errors.ErrorTypeInvalidArgument, "invalid argument")
	ErrItemNotActive        = errors.Sentinel(errors.ErrorTypeItemNotActive, "item is not active")
	ErrStaleLease           = errors.Sentinel(errors.ErrorTypeStaleLease, "lease is stale")
)

func errEmptied(op string) error {
	return errors.New(errors.ErrorTypeInvalidOperation, "pool has been emptied").
		WithDetail("operation", op)
}

func errZeroItem() error {
	return errors.New(errors.ErrorTypeInvalidArgument, "item is nil or zero-valued")
}
