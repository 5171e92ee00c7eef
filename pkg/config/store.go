package config

import (
	"context"

	"taskboard-api/pkg/orm"

	"github.com/rs/zerolog/log"
)

// OpenStore connects the backend chosen by c.Store(). Call Validate first.
func (c *Config) OpenStore(ctx context.Context) (orm.Store, error) {
	kind := c.Store()
	log.Info().Str("store", string(kind)).Msg("Opening task store")
	switch kind {
	case StoreMemory:
		return orm.NewMemoryStore(), nil
	case StorePostgres:
		return orm.NewPostgresStore(ctx, c.DatabaseURL)
	default:
		return orm.NewRestStore(c.SupabaseURL, c.SupabaseAnonKey), nil
	}
}
