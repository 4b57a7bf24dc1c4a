package service

import "context"

// TransactionManager runs a function inside a database transaction.
// Repository calls made with the context passed to fn join the transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Lock is a held cross-instance lock.
type Lock interface {
	Release(ctx context.Context)
}

// LockFactory hands out best-effort cross-instance locks. Locking here is
// an optimization that reduces row lock contention between racing
// reconcilers; correctness never depends on it.
type LockFactory interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}
