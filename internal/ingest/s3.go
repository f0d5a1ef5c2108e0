package ingest

import (
	"bufio"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/pan-validator/internal/pan"
)

// GetObjectAPI is the slice of the S3 client the source needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a CSV object from S3.
type S3Source struct {
	Client GetObjectAPI
	Bucket string
	Key    string
	Opts   CSVOptions
}

func (s *S3Source) Name() string { return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key) }

func (s *S3Source) Records(ctx context.Context) ([]pan.RawRecord, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get S3 object %s: %w", s.Name(), err)
	}
	defer out.Body.Close()

	return ReadCSV(ctx, bufio.NewReaderSize(out.Body, 256*1024), s.Opts)
}
