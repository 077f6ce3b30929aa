package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/patient-support-platform/internal/config"
)

// AWSClients holds the SDK clients the API needs. A field is nil when the
// feature that uses it is not configured.
type AWSClients struct {
	S3  *s3.Client
	SES *sesv2.Client
}

// LoadAWSClients builds only the clients the configuration asks for: S3 when a
// referral documents bucket is set, SES when EMAIL_PROVIDER=ses. No SDK config
// is loaded when neither is needed.
func LoadAWSClients(ctx context.Context, cfg *appconfig.Config) (AWSClients, error) {
	wantS3 := strings.TrimSpace(cfg.ReferralDocumentsBucket) != ""
	wantSES := strings.EqualFold(cfg.EmailProvider, "ses")
	if !wantS3 && !wantSES {
		return AWSClients{}, nil
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return AWSClients{}, fmt.Errorf("load AWS config: %w", err)
	}
	var clients AWSClients
	if wantS3 {
		clients.S3 = NewS3Client(awsCfg, cfg)
	}
	if wantSES {
		clients.SES = sesv2.NewFromConfig(awsCfg)
	}
	return clients, nil
}

// LoadAWSConfig resolves region and credentials. Static keys are used when
// both are set, otherwise the default provider chain applies.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey); key != "" && secret != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = localEndpointResolver(endpoint, cfg.AWSRegion)
	}
	return awsCfg, nil
}

// localEndpointResolver points S3 and SES at a LocalStack-style endpoint and
// leaves every other service unresolved.
func localEndpointResolver(endpoint, region string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
		if service != s3.ServiceID && service != sesv2.ServiceID {
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
		return aws.Endpoint{
			URL:               endpoint,
			PartitionID:       "aws",
			SigningRegion:     region,
			HostnameImmutable: true,
		}, nil
	})
}

// NewS3Client builds the document mirror client. Path-style addressing is used
// when an endpoint override points at LocalStack.
func NewS3Client(awsCfg aws.Config, cfg *appconfig.Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
}
