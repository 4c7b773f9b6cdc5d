package scheduler

import "errors"

// Sentinel errors returned by scheduler operations. All failures are local
// and recoverable; nothing in this package panics or terminates the process.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrDuplicateTask  = errors.New("task already exists")
	ErrInvalidWeights = errors.New("invalid priority weights")
	ErrNilCalculator  = errors.New("calculator must not be nil")
)
