package config

import (
	"context"
	"fmt"
	"strings"

	"taskboard-api/utils"

	"github.com/rs/zerolog/log"
)

const (
	EnvSupabaseURL        = "SUPABASE_URL"
	EnvSupabaseAnonKey    = "SUPABASE_ANON_KEY"
	EnvDatabaseURL        = "DATABASE_URL"
	EnvPort               = "PORT"
	EnvCorsAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	EnvRuntimeEnv         = "RUNTIME_ENV"
	EnvAwsSecretID        = "AWS_SECRET_ID"
	EnvAwsRegion          = "AWS_REGION"

	DefaultPort = "3001"
)

type StoreKind string

const (
	StoreRest     StoreKind = "rest"
	StorePostgres StoreKind = "postgres"
	StoreMemory   StoreKind = "memory"
)

type Config struct {
	SupabaseURL     string
	SupabaseAnonKey string
	DatabaseURL     string
	Port            string
	AllowedOrigins  []string
	RuntimeEnv      string
	AwsSecretID     string
	AwsRegion       string
	UseMemoryStore  bool
}

// MissingEnvError lists required variables that were not set.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Names, ", ")
}

// Load reads the process environment. It does not validate.
func Load() *Config {
	return &Config{
		SupabaseURL:     strings.TrimSpace(utils.GetEnvOrDefault(EnvSupabaseURL, "")),
		SupabaseAnonKey: strings.TrimSpace(utils.GetEnvOrDefault(EnvSupabaseAnonKey, "")),
		DatabaseURL:     strings.TrimSpace(utils.GetEnvOrDefault(EnvDatabaseURL, "")),
		Port:            utils.GetEnvOrDefault(EnvPort, DefaultPort),
		AllowedOrigins:  utils.SplitCSV(utils.GetEnvOrDefault(EnvCorsAllowedOrigins, "")),
		RuntimeEnv:      utils.GetEnvOrDefault(EnvRuntimeEnv, "local"),
		AwsSecretID:     utils.GetEnvOrDefault(EnvAwsSecretID, ""),
		AwsRegion:       utils.GetEnvOrDefault(EnvAwsRegion, ""),
	}
}

func (c *Config) IsAws() bool {
	return c.RuntimeEnv == "aws"
}

// Store picks the backend: memory when asked for, Postgres when a database
// URL is configured, the hosted REST gateway otherwise.
func (c *Config) Store() StoreKind {
	switch {
	case c.UseMemoryStore:
		return StoreMemory
	case c.DatabaseURL != "":
		return StorePostgres
	default:
		return StoreRest
	}
}

// ResolveSecrets fills credentials from AWS Secrets Manager when running on
// aws. Values already present in the environment win.
func (c *Config) ResolveSecrets(ctx context.Context, fetch SecretFetcher) error {
	if !c.IsAws() || c.Store() == StoreMemory {
		return nil
	}
	if c.AwsSecretID == "" {
		return &MissingEnvError{Names: []string{EnvAwsSecretID}}
	}

	secret, err := fetch(ctx, c.AwsSecretID, c.AwsRegion)
	if err != nil {
		return fmt.Errorf("resolve store credentials: %w", err)
	}
	if c.SupabaseAnonKey == "" {
		c.SupabaseAnonKey = secret.SupabaseAnonKey
	}
	if c.SupabaseURL == "" {
		c.SupabaseURL = secret.SupabaseURL
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = secret.DatabaseURL
	}
	log.Info().Str("secretId", c.AwsSecretID).Msg("Loaded store credentials from AWS Secrets Manager")
	return nil
}

// Validate checks the startup preconditions of the selected store.
func (c *Config) Validate() error {
	var missing []string
	switch c.Store() {
	case StoreRest:
		if c.SupabaseURL == "" {
			missing = append(missing, EnvSupabaseURL)
		}
		if c.SupabaseAnonKey == "" {
			missing = append(missing, EnvSupabaseAnonKey)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, EnvDatabaseURL)
		}
	}
	if len(missing) > 0 {
		return &MissingEnvError{Names: missing}
	}
	return nil
}
