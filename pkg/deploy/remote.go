package deploy

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// DefaultRegion is used when neither flags nor the shared AWS config supply
// one.
const DefaultRegion = "us-east-1"

// RemoteConfig selects the AWS account and region a deploy talks to.
type RemoteConfig struct {
	// Profile names a shared-config profile to authorize with.
	Profile string
	// Region overrides the profile's default region.
	Region string
	// Static credentials, used instead of the profile when set.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// RetryAttempts bounds retries of failed SDK operations.
	RetryAttempts int
}

// SDKConfig resolves the AWS SDK configuration for this remote. Explicit
// settings win over the environment and the shared config files.
func (rc RemoteConfig) SDKConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithDefaultRegion(DefaultRegion),
	}
	if rc.Region != "" {
		opts = append(opts, config.WithRegion(rc.Region))
	}
	if rc.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(rc.Profile))
	}
	if rc.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(rc.AccessKeyID, rc.SecretAccessKey, rc.SessionToken),
		))
	}
	if rc.RetryAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(rc.RetryAttempts))
	}

	return config.LoadDefaultConfig(ctx, opts...)
}
