package cache

import (
	"context"
	"time"
)

// TotalsCache stores derived totals. Keys embed the account's generation, so
// bumping the generation after a write makes every older entry unreachable.
type TotalsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Generation(ctx context.Context, accountID string) (int64, error)
	Bump(ctx context.Context, accountID string) error
}

type NoopTotalsCache struct{}

func (NoopTotalsCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopTotalsCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopTotalsCache) Generation(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (NoopTotalsCache) Bump(_ context.Context, _ string) error {
	return nil
}

// AccountLocker serializes sale writes per account across processes.
type AccountLocker interface {
	Lock(ctx context.Context, accountID string) (unlock func(), err error)
}

type NoopAccountLocker struct{}

func (NoopAccountLocker) Lock(_ context.Context, _ string) (func(), error) {
	return func() {}, nil
}
