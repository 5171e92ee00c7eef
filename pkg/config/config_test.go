package config

import (
	"context"
	"errors"
	"testing"

	"taskboard-api/pkg/orm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvSupabaseURL, EnvSupabaseAnonKey, EnvDatabaseURL, EnvPort, EnvCorsAllowedOrigins, EnvRuntimeEnv, EnvAwsSecretID, EnvAwsRegion} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "local", cfg.RuntimeEnv)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.Equal(t, StoreRest, cfg.Store())
}

func TestValidateRequiresRestCredentials(t *testing.T) {
	clearEnv(t)

	err := Load().Validate()
	var missing *MissingEnvError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{EnvSupabaseURL, EnvSupabaseAnonKey}, missing.Names)

	t.Setenv(EnvSupabaseURL, "https://example.supabase.co")
	err = Load().Validate()
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{EnvSupabaseAnonKey}, missing.Names)

	t.Setenv(EnvSupabaseAnonKey, "anon")
	assert.NoError(t, Load().Validate())
}

func TestStoreSelection(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDatabaseURL, "postgres://localhost/tasks")
	t.Setenv(EnvCorsAllowedOrigins, "https://a.example, https://b.example,")

	cfg := Load()
	assert.Equal(t, StorePostgres, cfg.Store())
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)

	cfg.UseMemoryStore = true
	assert.Equal(t, StoreMemory, cfg.Store())
}

func TestResolveSecretsOnAws(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRuntimeEnv, "aws")
	t.Setenv(EnvAwsSecretID, "taskboard/store")
	t.Setenv(EnvSupabaseURL, "https://example.supabase.co")

	var gotID string
	fetch := func(ctx context.Context, secretID, region string) (StoreSecret, error) {
		gotID = secretID
		return StoreSecret{SupabaseURL: "https://ignored.example", SupabaseAnonKey: "from-secret"}, nil
	}

	cfg := Load()
	require.NoError(t, cfg.ResolveSecrets(context.Background(), fetch))
	assert.Equal(t, "taskboard/store", gotID)
	assert.Equal(t, "from-secret", cfg.SupabaseAnonKey)
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestResolveSecretsSkippedLocally(t *testing.T) {
	clearEnv(t)

	called := false
	fetch := func(ctx context.Context, secretID, region string) (StoreSecret, error) {
		called = true
		return StoreSecret{}, nil
	}
	require.NoError(t, Load().ResolveSecrets(context.Background(), fetch))
	assert.False(t, called)
}

func TestParseStoreSecret(t *testing.T) {
	secret, err := ParseStoreSecret(`{"supabaseUrl":"https://x.supabase.co","supabaseAnonKey":"k"}`)
	require.NoError(t, err)
	assert.Equal(t, "k", secret.SupabaseAnonKey)

	_, err = ParseStoreSecret(`{}`)
	assert.Error(t, err)

	_, err = ParseStoreSecret(`not json`)
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	cfg.UseMemoryStore = true
	store, err := cfg.OpenStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &orm.MemoryStore{}, store)

	cfg = Load()
	cfg.SupabaseURL = "https://example.supabase.co"
	cfg.SupabaseAnonKey = "anon"
	store, err = cfg.OpenStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &orm.RestStore{}, store)
	assert.NoError(t, store.Close())
}
