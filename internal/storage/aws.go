package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/pan-validator/internal/config"
	"github.com/ignite/pan-validator/internal/pan"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DynamoAPI is the subset of the DynamoDB client used here.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// LoadAWSConfig resolves AWS credentials: static keys when configured,
// else the named profile, else the default chain.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}

	switch {
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	case cfg.GetAWSProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.GetAWSProfile()))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewS3Client builds an S3 client, honoring a custom endpoint (MinIO, LocalStack).
func NewS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// SummaryItem is one run summary as stored in DynamoDB.
type SummaryItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	RunID        string `dynamodbav:"RunID"`
	Source       string `dynamodbav:"Source"`
	TotalRecords int    `dynamodbav:"TotalRecords"`
	TotalValid   int    `dynamodbav:"TotalValid"`
	TotalInvalid int    `dynamodbav:"TotalInvalid"`
	Duplicates   int    `dynamodbav:"Duplicates"`
	ByVerdict    string `dynamodbav:"ByVerdict"`
	Timestamp    string `dynamodbav:"Timestamp"`
}

// RunSummary converts the stored row back into a run header.
func (i SummaryItem) RunSummary() (pan.RunSummary, error) {
	out := pan.RunSummary{
		RunID:  i.RunID,
		Source: i.Source,
		Summary: pan.Summary{
			TotalRecords: i.TotalRecords,
			TotalValid:   i.TotalValid,
			TotalInvalid: i.TotalInvalid,
		},
		Dedup: pan.DedupStats{
			Input:      i.TotalRecords + i.Duplicates,
			Unique:     i.TotalRecords,
			Duplicates: i.Duplicates,
		},
	}
	if i.ByVerdict != "" {
		if err := json.Unmarshal([]byte(i.ByVerdict), &out.Summary.ByVerdict); err != nil {
			return out, fmt.Errorf("decoding verdict counts for run %s: %w", i.RunID, err)
		}
	}
	if i.Timestamp != "" {
		at, err := time.Parse(time.RFC3339, i.Timestamp)
		if err != nil {
			return out, fmt.Errorf("parsing timestamp for run %s: %w", i.RunID, err)
		}
		out.CreatedAt = at
	}
	return out, nil
}

// AWSStorage persists reports to S3 and summary history to DynamoDB.
type AWSStorage struct {
	s3Client  S3API
	dynamoDB  DynamoAPI
	bucket    string
	prefix    string
	tableName string
	now       func() time.Time
}

// NewAWSStorage wires the clients. Either may be nil when unused.
func NewAWSStorage(s3Client S3API, dynamoDB DynamoAPI, bucket, prefix, tableName string) *AWSStorage {
	return &AWSStorage{
		s3Client:  s3Client,
		dynamoDB:  dynamoDB,
		bucket:    bucket,
		prefix:    prefix,
		tableName: tableName,
		now:       time.Now,
	}
}

// ReportKey returns the object key a run's report is written under.
func (s *AWSStorage) ReportKey(runID, ext string) string {
	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%s%s/%s.%s", prefix, s.now().UTC().Format("2006-01-02"), runID, ext)
}

// SaveToS3 uploads body under key.
func (s *AWSStorage) SaveToS3(ctx context.Context, key, contentType string, body []byte) error {
	if s.s3Client == nil {
		return ErrNotConfigured
	}
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting S3 object %s: %w", key, err)
	}
	return nil
}

// SaveJSONToS3 marshals data and uploads it under key.
func (s *AWSStorage) SaveJSONToS3(ctx context.Context, key string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}
	return s.SaveToS3(ctx, key, "application/json", body)
}

// SaveSummary writes one summary row, partitioned by source.
func (s *AWSStorage) SaveSummary(ctx context.Context, item SummaryItem) error {
	if s.dynamoDB == nil {
		return ErrNotConfigured
	}
	now := s.now().UTC()
	item.PK = "SOURCE#" + item.Source
	item.SK = now.Format(time.RFC3339Nano) + "#" + item.RunID
	item.Timestamp = now.Format(time.RFC3339)

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = s.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("putting summary item: %w", err)
	}
	return nil
}

// ListSummaries returns the most recent summaries for a source, newest first.
func (s *AWSStorage) ListSummaries(ctx context.Context, source string, limit int32) ([]SummaryItem, error) {
	if s.dynamoDB == nil {
		return nil, ErrNotConfigured
	}
	out, err := s.dynamoDB.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "SOURCE#" + source},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}

	items := make([]SummaryItem, 0, len(out.Items))
	for _, raw := range out.Items {
		var item SummaryItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshaling summary: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}
