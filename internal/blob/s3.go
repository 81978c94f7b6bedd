package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var _ Deleter = (*S3Deleter)(nil)

// S3Deleter implements Deleter with S3 DeleteObjects.
type S3Deleter struct {
	client S3API
}

// NewS3Deleter creates a new S3 backed deleter.
func NewS3Deleter(client S3API) *S3Deleter {
	return &S3Deleter{client: client}
}

// BulkDelete removes keys from bucket, splitting into requests of MaxKeysPerRequest.
// NoSuchKey results count as deleted.
func (d *S3Deleter) BulkDelete(ctx context.Context, bucket string, keys []string) (*DeleteResult, error) {
	res := &DeleteResult{}

	for start := 0; start < len(keys); start += MaxKeysPerRequest {
		end := min(start+MaxKeysPerRequest, len(keys))

		objects := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(k)})
		}

		output, err := d.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(false),
			},
		})
		if err != nil {
			log.Error().Err(err).Str("bucket", bucket).Int("keys", len(objects)).Msg("Failed to delete objects")
			return nil, wrapS3Error(err, bucket)
		}

		res.Deleted += len(output.Deleted)

		for _, e := range output.Errors {
			code := aws.ToString(e.Code)
			if code == "NoSuchKey" {
				res.Deleted++
				continue
			}
			res.Failed = append(res.Failed, KeyError{
				Key:     aws.ToString(e.Key),
				Code:    code,
				Message: aws.ToString(e.Message),
			})
		}
	}

	log.Debug().
		Str("bucket", bucket).
		Int("requested", len(keys)).
		Int("deleted", res.Deleted).
		Int("failed", len(res.Failed)).
		Msg("Bulk delete completed")

	return res, res.Err()
}

func wrapS3Error(err error, bucket string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("failed to delete objects from %s [%s]: %w", bucket, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("failed to delete objects from %s: %w", bucket, err)
}
