package config

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog/log"
)

// StoreSecret is the JSON document kept in Secrets Manager.
type StoreSecret struct {
	SupabaseURL     string `json:"supabaseUrl"`
	SupabaseAnonKey string `json:"supabaseAnonKey"`
	DatabaseURL     string `json:"databaseUrl"`
}

type SecretFetcher func(ctx context.Context, secretID string, region string) (StoreSecret, error)

// FetchAwsSecret reads the store secret, retrying while the SDK or the
// service is not reachable yet.
func FetchAwsSecret(ctx context.Context, secretID string, region string) (StoreSecret, error) {
	var secret StoreSecret

	maxRetries := 10
	retryDelay := time.Second

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return secret, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			log.Error().Err(err).Msg("Unable to load SDK config")
			continue
		}

		svc := secretsmanager.NewFromConfig(cfg)
		result, err := svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId:     aws.String(secretID),
			VersionStage: aws.String("AWSCURRENT"),
		})
		if err != nil {
			log.Error().Err(err).Msg("Unable to retrieve secret")
			continue
		}
		if result.SecretString == nil {
			log.Error().Msg("Secret has no string value")
			continue
		}

		secret, err = ParseStoreSecret(*result.SecretString)
		if err != nil {
			log.Error().Err(err).Msg("Unable to unmarshal secret")
			continue
		}
		return secret, nil
	}

	return secret, fmt.Errorf("failed to retrieve secret after %d retries", maxRetries)
}

func ParseStoreSecret(raw string) (StoreSecret, error) {
	var secret StoreSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return secret, err
	}
	if secret.SupabaseAnonKey == "" && secret.DatabaseURL == "" {
		return secret, fmt.Errorf("secret holds neither supabaseAnonKey nor databaseUrl")
	}
	return secret, nil
}
