package pool

import "errors"

// Sentinel errors for handle and pool operations. Execute failures always
// wrap exactly one of ErrTimeout, ErrCrashed or ErrCanceled; start failures
// wrap ErrStartFailed plus the cause kind.
var (
	ErrStartFailed     = errors.New("worker failed to start")
	ErrTimeout         = errors.New("worker timed out")
	ErrCrashed         = errors.New("worker crashed")
	ErrCanceled        = errors.New("request canceled")
	ErrNotIdle         = errors.New("worker is not idle")
	ErrPoolClosed      = errors.New("pool is closed")
	ErrInvalidConfig   = errors.New("invalid pool configuration")
	ErrShutdownTimeout = errors.New("pool shutdown timed out")
)
