package port

import "context"

type IdempotencyRepository interface {
	// Reserve sets a key for idempotency check, returns false if already exists
	Reserve(ctx context.Context, key string) (bool, error)

	// Release drops a reservation so a failed request can be retried
	Release(ctx context.Context, key string) error
}
