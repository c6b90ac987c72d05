package database

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles the service clients the booking backend needs.
type AWSClients struct {
	DynamoDB *dynamodb.Client
	SQS      *sqs.Client
}

// NewAWSClients loads AWS config for region. When dynamoEndpoint is set the
// DynamoDB client targets it (DynamoDB Local) with static credentials.
func NewAWSClients(ctx context.Context, region, dynamoEndpoint string) (*AWSClients, error) {
	cfg, err := loadAWSConfig(ctx, region, dynamoEndpoint)
	if err != nil {
		return nil, err
	}

	dynamoClient := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if dynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(dynamoEndpoint)
		}
	})

	return &AWSClients{
		DynamoDB: dynamoClient,
		SQS:      sqs.NewFromConfig(cfg),
	}, nil
}

func loadAWSConfig(ctx context.Context, region, dynamoEndpoint string) (aws.Config, error) {
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	// DynamoDB Local does not validate credentials, but the SDK requires them.
	if dynamoEndpoint != "" {
		creds := credentials.NewStaticCredentialsProvider(
			getenvDefault("AWS_ACCESS_KEY_ID", "local"),
			getenvDefault("AWS_SECRET_ACCESS_KEY", "local"),
			"",
		)
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
