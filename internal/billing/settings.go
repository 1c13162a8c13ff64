package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const settingsCacheKey = "labkeeper:pricing_settings"

// SettingsStore loads pricing settings from the store of record.
type SettingsStore interface {
	LoadPricing(ctx context.Context) (PricingSettings, error)
}

// PGSettingsStore reads pricing settings from PostgreSQL.
type PGSettingsStore struct {
	pool *pgxpool.Pool
}

// NewPGSettingsStore constructs a PGSettingsStore.
func NewPGSettingsStore(pool *pgxpool.Pool) *PGSettingsStore {
	return &PGSettingsStore{pool: pool}
}

// LoadPricing fetches the single pricing settings row.
func (s *PGSettingsStore) LoadPricing(ctx context.Context) (PricingSettings, error) {
	var out PricingSettings
	row := s.pool.QueryRow(ctx, `
		SELECT surge_pricing_enabled, surge_multiplier, surge_start_hour, surge_end_hour, open_hour, close_hour
		FROM pricing_settings
		LIMIT 1`)
	err := row.Scan(&out.SurgePricingEnabled, &out.SurgeMultiplier, &out.SurgeStartHour, &out.SurgeEndHour, &out.OpenHour, &out.CloseHour)
	if errors.Is(err, pgx.ErrNoRows) {
		return PricingSettings{}, ErrSettingsNotFound
	}
	if err != nil {
		return PricingSettings{}, err
	}
	return out, nil
}

// SettingsProvider supplies pricing settings with a Redis cache in front of
// the store of record. The core only reads settings; editing belongs to the
// facility configuration surface.
type SettingsProvider struct {
	store SettingsStore
	cache *redis.Client
	ttl   time.Duration
}

// NewSettingsProvider constructs a SettingsProvider over a PostgreSQL
// store. A nil cache client disables caching.
func NewSettingsProvider(pool *pgxpool.Pool, cache *redis.Client, ttl time.Duration) *SettingsProvider {
	return &SettingsProvider{store: NewPGSettingsStore(pool), cache: cache, ttl: ttl}
}

// NewSettingsProviderWithStore constructs a SettingsProvider over any store.
func NewSettingsProviderWithStore(store SettingsStore, cache *redis.Client, ttl time.Duration) *SettingsProvider {
	return &SettingsProvider{store: store, cache: cache, ttl: ttl}
}

// Pricing returns the current pricing settings.
func (p *SettingsProvider) Pricing(ctx context.Context) (PricingSettings, error) {
	if p.cache != nil {
		// A cache miss or any cache trouble falls through to the store of record.
		if raw, err := p.cache.Get(ctx, settingsCacheKey).Bytes(); err == nil {
			var cached PricingSettings
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	settings, err := p.store.LoadPricing(ctx)
	if err != nil {
		return PricingSettings{}, err
	}

	if p.cache != nil {
		if raw, err := json.Marshal(settings); err == nil {
			_ = p.cache.Set(ctx, settingsCacheKey, raw, p.ttl).Err()
		}
	}
	return settings, nil
}

// Invalidate drops the cached settings, forcing the next read to hit the store.
func (p *SettingsProvider) Invalidate(ctx context.Context) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Del(ctx, settingsCacheKey).Err()
}
