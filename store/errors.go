package store

import "golang.org/x/xerrors"

var (
	// ErrLockNotAcquired is returned by a Locker when a session-scoped
	// advisory lock is already held elsewhere.
	ErrLockNotAcquired = xerrors.New("lock not acquired")

	// ErrNotFound is returned when a lookup by natural key finds no row.
	ErrNotFound = xerrors.New("not found")
)
