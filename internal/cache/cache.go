package cache

import (
	"context"
	"time"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
)

// TariffCache holds the resolved tariff list between edits. Station status
// polling hits the tariff table on every tick, so the hot path reads from
// here and tariff writes invalidate.
type TariffCache interface {
	Get(ctx context.Context, key string) ([]domain.Tariff, bool, error)
	Set(ctx context.Context, key string, tariffs []domain.Tariff, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopTariffCache struct{}

func (NoopTariffCache) Get(_ context.Context, _ string) ([]domain.Tariff, bool, error) {
	return nil, false, nil
}

func (NoopTariffCache) Set(_ context.Context, _ string, _ []domain.Tariff, _ time.Duration) error {
	return nil
}

func (NoopTariffCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
